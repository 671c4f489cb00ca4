// Package votes tracks delegated, block-indexed voting power derived from
// token balances.
package votes

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"voteledger/core/events"
	"voteledger/core/types"
	"voteledger/native/checkpoints"
)

var (
	delegatePrefix = []byte("votes/delegate/")
	historyPrefix  = []byte("votes/history/")
	noncePrefix    = []byte("votes/nonce/")
	supplyHistory  = []byte("votes/supply")
)

type votesState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Balance(addr [20]byte) (*uint256.Int, error)
}

// Engine maintains the delegation registry, per-delegate vote histories, the
// total-supply history and signed-delegation nonces.
type Engine struct {
	state     votesState
	emitter   events.Emitter
	nowFn     func() time.Time
	blockFn   func() uint64
	domain    Domain
	recoverer Recoverer
}

// NewEngine constructs a votes engine with default no-op dependencies. The
// block function defaults to block 1.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() time.Time { return time.Now().UTC() },
		blockFn:   func() uint64 { return 1 },
		recoverer: EIP712Recoverer{},
	}
}

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(state votesState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for signature expiry. Nil restores the
// default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// SetBlockFunc supplies the current block number. Writes are checkpointed at
// this block and historical queries must target blocks strictly below it.
func (e *Engine) SetBlockFunc(block func() uint64) {
	if block == nil {
		e.blockFn = func() uint64 { return 1 }
		return
	}
	e.blockFn = block
}

// SetDomain configures the signing domain for DelegateBySig.
func (e *Engine) SetDomain(domain Domain) { e.domain = domain }

// SetRecoverer replaces the signature recovery implementation. Nil restores
// the EIP-712 secp256k1 recoverer.
func (e *Engine) SetRecoverer(r Recoverer) {
	if r == nil {
		e.recoverer = EIP712Recoverer{}
		return
	}
	e.recoverer = r
}

func keyFor(prefix []byte, account types.AccountID) []byte {
	key := make([]byte, 0, len(prefix)+len(account))
	key = append(key, prefix...)
	return append(key, account[:]...)
}

func (e *Engine) history(account types.AccountID) *checkpoints.History {
	return checkpoints.NewHistory(e.state, keyFor(historyPrefix, account))
}

func (e *Engine) supply() *checkpoints.History {
	return checkpoints.NewHistory(e.state, supplyHistory)
}

// Delegates returns the current delegatee of account, NoAccount when unset.
func (e *Engine) Delegates(account types.AccountID) (types.AccountID, error) {
	if e.state == nil {
		return types.NoAccount, errStateNotConfigured
	}
	var delegatee types.AccountID
	if _, err := e.state.KVGet(keyFor(delegatePrefix, account), &delegatee); err != nil {
		return types.NoAccount, fmt.Errorf("votes: load delegatee: %w", err)
	}
	return delegatee, nil
}

// Delegate points the voting power of delegator's balance at delegatee.
// Delegating to NoAccount withdraws it.
func (e *Engine) Delegate(delegator, delegatee types.AccountID) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	previous, err := e.Delegates(delegator)
	if err != nil {
		return err
	}
	var changes []events.Event
	if previous != delegatee {
		balance, err := e.state.Balance(delegator)
		if err != nil {
			return fmt.Errorf("votes: load balance: %w", err)
		}
		changes, err = e.moveVotingPower(previous, delegatee, balance)
		if err != nil {
			return err
		}
	}
	if err := e.state.KVPut(keyFor(delegatePrefix, delegator), delegatee); err != nil {
		return fmt.Errorf("votes: store delegatee: %w", err)
	}
	e.emitter.Emit(events.DelegateeChanged{Delegator: delegator, From: previous, To: delegatee})
	for _, evt := range changes {
		e.emitter.Emit(evt)
	}
	return nil
}

// ResetDelegation withdraws the voting power of delegator's balance from its
// current delegatee.
func (e *Engine) ResetDelegation(delegator types.AccountID) error {
	return e.Delegate(delegator, types.NoAccount)
}

// OnMint checkpoints the increased total supply and credits the delegatee of
// to, returning the resulting vote changes for the caller to emit. It fails
// with ErrSupplyOverflow, before writing anything, when the new supply would
// exceed MaxVotes.
func (e *Engine) OnMint(to types.AccountID, amount *uint256.Int) ([]events.Event, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	if amount == nil || amount.IsZero() {
		return nil, nil
	}
	total, err := e.supply().Latest()
	if err != nil {
		return nil, err
	}
	updated, overflow := new(uint256.Int).AddOverflow(total, amount)
	if overflow || updated.Gt(MaxVotes) {
		return nil, ErrSupplyOverflow
	}
	if _, _, err := e.supply().Push(e.blockFn(), updated); err != nil {
		return nil, err
	}
	return e.OnTransfer(types.NoAccount, to, amount)
}

// OnBurn checkpoints the decreased total supply and debits the delegatee of
// from.
func (e *Engine) OnBurn(from types.AccountID, amount *uint256.Int) ([]events.Event, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	if amount == nil || amount.IsZero() {
		return nil, nil
	}
	total, err := e.supply().Latest()
	if err != nil {
		return nil, err
	}
	if total.Lt(amount) {
		return nil, fmt.Errorf("votes: burn of %s exceeds supply %s", amount.Dec(), total.Dec())
	}
	if _, _, err := e.supply().Push(e.blockFn(), new(uint256.Int).Sub(total, amount)); err != nil {
		return nil, err
	}
	return e.OnTransfer(from, types.NoAccount, amount)
}

// OnTransfer moves voting power between the delegatees of the two sides of a
// balance movement. NoAccount on either side stands for mint or burn. The
// DelegateVotesChanged events are returned for the caller to emit.
func (e *Engine) OnTransfer(from, to types.AccountID, amount *uint256.Int) ([]events.Event, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	src, dst := types.NoAccount, types.NoAccount
	var err error
	if !from.IsNone() {
		if src, err = e.Delegates(from); err != nil {
			return nil, err
		}
	}
	if !to.IsNone() {
		if dst, err = e.Delegates(to); err != nil {
			return nil, err
		}
	}
	return e.moveVotingPower(src, dst, amount)
}

// moveVotingPower debits src and credits dst at the current block and returns
// the resulting DelegateVotesChanged events without emitting them.
func (e *Engine) moveVotingPower(src, dst types.AccountID, amount *uint256.Int) ([]events.Event, error) {
	if src == dst || amount == nil || amount.IsZero() {
		return nil, nil
	}
	block := e.blockFn()
	var changes []events.Event
	if !src.IsNone() {
		h := e.history(src)
		current, err := h.Latest()
		if err != nil {
			return nil, err
		}
		if current.Lt(amount) {
			return nil, fmt.Errorf("%w: %s holds %s, moving %s", ErrVotesUnderflow, src, current.Dec(), amount.Dec())
		}
		previous, updated, err := h.Push(block, new(uint256.Int).Sub(current, amount))
		if err != nil {
			return nil, err
		}
		changes = append(changes, events.DelegateVotesChanged{Delegate: src, Previous: previous, Current: updated})
	}
	if !dst.IsNone() {
		h := e.history(dst)
		current, err := h.Latest()
		if err != nil {
			return nil, err
		}
		next, overflow := new(uint256.Int).AddOverflow(current, amount)
		if overflow || next.Gt(MaxVotes) {
			return nil, ErrSupplyOverflow
		}
		previous, updated, err := h.Push(block, next)
		if err != nil {
			return nil, err
		}
		changes = append(changes, events.DelegateVotesChanged{Delegate: dst, Previous: previous, Current: updated})
	}
	return changes, nil
}

// GetVotes returns the current voting power of account.
func (e *Engine) GetVotes(account types.AccountID) (*uint256.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.history(account).Latest()
}

// GetPastVotes returns the voting power account held at the end of block.
func (e *Engine) GetPastVotes(account types.AccountID, block uint64) (*uint256.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	if block >= e.blockFn() {
		return nil, ErrBlockNotMined
	}
	return e.history(account).UpperLookup(block)
}

// GetPastTotalSupply returns the total supply at the end of block.
func (e *Engine) GetPastTotalSupply(block uint64) (*uint256.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	if block >= e.blockFn() {
		return nil, ErrBlockNotMined
	}
	return e.supply().UpperLookup(block)
}

// NumCheckpoints returns the length of account's vote history.
func (e *Engine) NumCheckpoints(account types.AccountID) (uint64, error) {
	if e.state == nil {
		return 0, errStateNotConfigured
	}
	return e.history(account).Len()
}

// Checkpoint returns the checkpoint at position pos of account's history.
func (e *Engine) Checkpoint(account types.AccountID, pos uint64) (checkpoints.Checkpoint, error) {
	if e.state == nil {
		return checkpoints.Checkpoint{}, errStateNotConfigured
	}
	h := e.history(account)
	n, err := h.Len()
	if err != nil {
		return checkpoints.Checkpoint{}, err
	}
	if pos >= n {
		return checkpoints.Checkpoint{}, fmt.Errorf("%w: position %d of %d", ErrCheckpointNotFound, pos, n)
	}
	return h.At(pos)
}

// Nonces returns the next signed-delegation nonce expected from account.
func (e *Engine) Nonces(account types.AccountID) (uint64, error) {
	if e.state == nil {
		return 0, errStateNotConfigured
	}
	var nonce uint64
	if _, err := e.state.KVGet(keyFor(noncePrefix, account), &nonce); err != nil {
		return 0, fmt.Errorf("votes: load nonce: %w", err)
	}
	return nonce, nil
}
