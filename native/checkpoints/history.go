package checkpoints

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// Store is the narrow state surface a History persists through.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// History is a checkpoint sequence persisted under a key prefix: one entry
// for the length plus one entry per checkpoint index.
type History struct {
	store  Store
	prefix []byte
}

// NewHistory binds a history to the given key prefix. Histories are created
// lazily: nothing is written until the first Push.
func NewHistory(store Store, prefix []byte) *History {
	return &History{store: store, prefix: append([]byte(nil), prefix...)}
}

func (h *History) lengthKey() []byte {
	return append(append([]byte(nil), h.prefix...), "/len"...)
}

func (h *History) entryKey(index uint64) []byte {
	key := append(append([]byte(nil), h.prefix...), "/cp/"...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return append(key, buf[:]...)
}

// Len returns the number of checkpoints in the history.
func (h *History) Len() (uint64, error) {
	var n uint64
	if _, err := h.store.KVGet(h.lengthKey(), &n); err != nil {
		return 0, fmt.Errorf("checkpoints: load length: %w", err)
	}
	return n, nil
}

// At returns the checkpoint stored at index.
func (h *History) At(index uint64) (Checkpoint, error) {
	var cp Checkpoint
	ok, err := h.store.KVGet(h.entryKey(index), &cp)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoints: load entry %d: %w", index, err)
	}
	if !ok {
		return Checkpoint{}, fmt.Errorf("checkpoints: entry %d missing", index)
	}
	if cp.Value == nil {
		cp.Value = new(uint256.Int)
	}
	return cp, nil
}

// Latest returns the current value of the history, zero when empty.
func (h *History) Latest() (*uint256.Int, error) {
	n, err := h.Len()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return new(uint256.Int), nil
	}
	cp, err := h.At(n - 1)
	if err != nil {
		return nil, err
	}
	return cp.value(), nil
}

// UpperLookup returns the value effective at block target.
func (h *History) UpperLookup(target uint64) (*uint256.Int, error) {
	return UpperLookup(h, target)
}

// Push records value as effective from block. A push at the latest
// checkpoint's block amends it in place; a push at an earlier block fails with
// ErrUnorderedCheckpoint. The previous latest value is returned alongside the
// new one.
func (h *History) Push(block uint64, value *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	n, err := h.Len()
	if err != nil {
		return nil, nil, err
	}
	entry := Checkpoint{Block: block, Value: value.Clone()}
	if n == 0 {
		if err := h.store.KVPut(h.entryKey(0), &entry); err != nil {
			return nil, nil, err
		}
		if err := h.store.KVPut(h.lengthKey(), uint64(1)); err != nil {
			return nil, nil, err
		}
		return new(uint256.Int), value.Clone(), nil
	}

	tail, err := h.At(n - 1)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case tail.Block > block:
		return nil, nil, fmt.Errorf("%w: block %d after %d", ErrUnorderedCheckpoint, block, tail.Block)
	case tail.Block == block:
		if err := h.store.KVPut(h.entryKey(n-1), &entry); err != nil {
			return nil, nil, err
		}
	default:
		if err := h.store.KVPut(h.entryKey(n), &entry); err != nil {
			return nil, nil, err
		}
		if err := h.store.KVPut(h.lengthKey(), n+1); err != nil {
			return nil, nil, err
		}
	}
	return tail.value(), value.Clone(), nil
}
