// Package checkpoints stores block-indexed value histories and answers
// point-in-time lookups over them.
package checkpoints

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrUnorderedCheckpoint is returned when a write targets a block lower than
// the history's latest checkpoint.
var ErrUnorderedCheckpoint = errors.New("checkpoints: block precedes latest checkpoint")

// Checkpoint is the value of a history effective from Block until the next
// checkpoint supersedes it.
type Checkpoint struct {
	Block uint64
	Value *uint256.Int
}

func (c Checkpoint) value() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value.Clone()
}

// Sequence is a read-only, block-ordered view over a checkpoint history.
type Sequence interface {
	Len() (uint64, error)
	At(index uint64) (Checkpoint, error)
}

// Slice adapts an in-memory checkpoint list to Sequence.
type Slice []Checkpoint

func (s Slice) Len() (uint64, error) { return uint64(len(s)), nil }

func (s Slice) At(index uint64) (Checkpoint, error) { return s[index], nil }

// UpperLookup returns the value of the last checkpoint whose block is at or
// below target. An empty history, or one that starts after target, yields
// zero. The tail is checked first since most lookups ask about recent blocks.
func UpperLookup(seq Sequence, target uint64) (*uint256.Int, error) {
	n, err := seq.Len()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return new(uint256.Int), nil
	}
	tail, err := seq.At(n - 1)
	if err != nil {
		return nil, err
	}
	if tail.Block <= target {
		return tail.value(), nil
	}

	// First index whose block is strictly greater than target.
	lo, hi := uint64(0), n-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		cp, err := seq.At(mid)
		if err != nil {
			return nil, err
		}
		if cp.Block > target {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == 0 {
		return new(uint256.Int), nil
	}
	found, err := seq.At(lo - 1)
	if err != nil {
		return nil, err
	}
	return found.value(), nil
}
