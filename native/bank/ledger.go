// Package bank holds the fungible balances that back voting power.
package bank

import (
	"errors"

	"github.com/holiman/uint256"

	"voteledger/core/events"
	"voteledger/core/types"
)

var (
	ErrInsufficientBalance   = errors.New("bank: amount exceeds balance")
	ErrUnavailableBalance    = errors.New("bank: amount exceeds available balance")
	ErrInsufficientAllowance = errors.New("bank: amount exceeds allowance")
	ErrInsufficientFrozen    = errors.New("bank: amount exceeds frozen balance")
	ErrAllowanceUnderflow    = errors.New("bank: decreased allowance below zero")
	ErrPaused                = errors.New("bank: token transfers paused")
	ErrZeroAddress           = errors.New("bank: zero address")
	ErrSelfTransfer          = errors.New("bank: recipient is the ledger itself")
	ErrBalanceOverflow       = errors.New("bank: balance overflow")

	errStateNotConfigured = errors.New("bank: state not configured")
)

// MaxAllowance is treated as an unlimited approval that transferFrom never
// decrements.
var MaxAllowance = new(uint256.Int).SetAllOne()

type bankState interface {
	Account(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	Allowance(owner, spender [20]byte) (*uint256.Int, error)
	SetAllowance(owner, spender [20]byte, amount *uint256.Int) error
	TokenSupply() (*uint256.Int, error)
	AdjustTokenSupply(delta *uint256.Int, burn bool) (*uint256.Int, error)
	Paused() (bool, error)
	SetPaused(paused bool) error
}

// Hooks observe balance changes before they are applied. An error aborts the
// operation. Returned events are emitted after the Transfer they follow from.
type Hooks interface {
	OnMint(to types.AccountID, amount *uint256.Int) ([]events.Event, error)
	OnBurn(from types.AccountID, amount *uint256.Int) ([]events.Event, error)
	OnTransfer(from, to types.AccountID, amount *uint256.Int) ([]events.Event, error)
}

type noopHooks struct{}

func (noopHooks) OnMint(types.AccountID, *uint256.Int) ([]events.Event, error) { return nil, nil }

func (noopHooks) OnBurn(types.AccountID, *uint256.Int) ([]events.Event, error) { return nil, nil }

func (noopHooks) OnTransfer(types.AccountID, types.AccountID, *uint256.Int) ([]events.Event, error) {
	return nil, nil
}

// Ledger implements mint, burn, transfer, allowances, freezing and pausing
// for the single ledger token.
type Ledger struct {
	state   bankState
	hooks   Hooks
	emitter events.Emitter
	self    types.AccountID
	symbol  string
}

// NewLedger constructs a bank ledger. self is the ledger's own account, which
// can never receive tokens.
func NewLedger(self types.AccountID, symbol string) *Ledger {
	return &Ledger{
		hooks:   noopHooks{},
		emitter: events.NoopEmitter{},
		self:    self,
		symbol:  symbol,
	}
}

// SetState wires the ledger to the state backend.
func (l *Ledger) SetState(state bankState) { l.state = state }

// SetHooks installs the balance-change observers. Nil disables them.
func (l *Ledger) SetHooks(hooks Hooks) {
	if hooks == nil {
		l.hooks = noopHooks{}
		return
	}
	l.hooks = hooks
}

// SetEmitter configures the event emitter used by the ledger. Passing nil resets
// the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emitAll(evts []events.Event) {
	for _, evt := range evts {
		l.emitter.Emit(evt)
	}
}

func amountOrZero(amount *uint256.Int) *uint256.Int {
	if amount == nil {
		return new(uint256.Int)
	}
	return amount.Clone()
}

func (l *Ledger) checkRecipient(to types.AccountID) error {
	if to.IsNone() {
		return ErrZeroAddress
	}
	if to == l.self {
		return ErrSelfTransfer
	}
	return nil
}

func (l *Ledger) checkNotPaused() error {
	paused, err := l.state.Paused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

// BalanceOf returns the full balance of account, frozen part included.
func (l *Ledger) BalanceOf(account types.AccountID) (*uint256.Int, error) {
	if l.state == nil {
		return nil, errStateNotConfigured
	}
	acc, err := l.state.Account(account)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

// AvailableBalance returns the part of account's balance that is not frozen.
func (l *Ledger) AvailableBalance(account types.AccountID) (*uint256.Int, error) {
	if l.state == nil {
		return nil, errStateNotConfigured
	}
	acc, err := l.state.Account(account)
	if err != nil {
		return nil, err
	}
	return acc.Available(), nil
}

// FrozenBalance returns the frozen part of account's balance.
func (l *Ledger) FrozenBalance(account types.AccountID) (*uint256.Int, error) {
	if l.state == nil {
		return nil, errStateNotConfigured
	}
	acc, err := l.state.Account(account)
	if err != nil {
		return nil, err
	}
	return acc.Frozen, nil
}

// TotalSupply returns the current token supply.
func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	if l.state == nil {
		return nil, errStateNotConfigured
	}
	return l.state.TokenSupply()
}

// Allowance returns how much spender may still move on behalf of owner.
func (l *Ledger) Allowance(owner, spender types.AccountID) (*uint256.Int, error) {
	if l.state == nil {
		return nil, errStateNotConfigured
	}
	return l.state.Allowance(owner, spender)
}

// Mint creates amount new tokens in to's balance.
func (l *Ledger) Mint(to types.AccountID, amount *uint256.Int) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	amount = amountOrZero(amount)
	if err := l.checkRecipient(to); err != nil {
		return err
	}
	if err := l.checkNotPaused(); err != nil {
		return err
	}
	acc, err := l.state.Account(to)
	if err != nil {
		return err
	}
	if _, overflow := acc.Balance.AddOverflow(acc.Balance, amount); overflow {
		return ErrBalanceOverflow
	}

	changes, err := l.hooks.OnMint(to, amount)
	if err != nil {
		return err
	}
	newSupply, err := l.state.AdjustTokenSupply(amount, false)
	if err != nil {
		return err
	}
	if err := l.state.PutAccount(to, acc); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: l.symbol, From: types.NoAccount, To: to, Amount: amount})
	l.emitAll(changes)
	l.emitter.Emit(events.TokenSupply{Token: l.symbol, Total: newSupply, Delta: amount, Reason: events.SupplyReasonMint})
	return nil
}

// Burn destroys amount tokens from the available balance of from.
func (l *Ledger) Burn(from types.AccountID, amount *uint256.Int) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	amount = amountOrZero(amount)
	if from.IsNone() {
		return ErrZeroAddress
	}
	if err := l.checkNotPaused(); err != nil {
		return err
	}
	acc, err := l.state.Account(from)
	if err != nil {
		return err
	}
	if err := debitable(acc, amount); err != nil {
		return err
	}

	changes, err := l.hooks.OnBurn(from, amount)
	if err != nil {
		return err
	}
	newSupply, err := l.state.AdjustTokenSupply(amount, true)
	if err != nil {
		return err
	}
	acc.Balance.Sub(acc.Balance, amount)
	if err := l.state.PutAccount(from, acc); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: l.symbol, From: from, To: types.NoAccount, Amount: amount})
	l.emitAll(changes)
	l.emitter.Emit(events.TokenSupply{Token: l.symbol, Total: newSupply, Delta: amount, Reason: events.SupplyReasonBurn})
	return nil
}

func debitable(acc *types.Account, amount *uint256.Int) error {
	if acc.Balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if acc.Available().Lt(amount) {
		return ErrUnavailableBalance
	}
	return nil
}

// Transfer moves amount from the available balance of from to to.
func (l *Ledger) Transfer(from, to types.AccountID, amount *uint256.Int) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	amount = amountOrZero(amount)
	if from.IsNone() {
		return ErrZeroAddress
	}
	if err := l.checkRecipient(to); err != nil {
		return err
	}
	if err := l.checkNotPaused(); err != nil {
		return err
	}
	sender, err := l.state.Account(from)
	if err != nil {
		return err
	}
	if err := debitable(sender, amount); err != nil {
		return err
	}
	receiver := sender
	if from != to {
		if receiver, err = l.state.Account(to); err != nil {
			return err
		}
		if _, overflow := new(uint256.Int).AddOverflow(receiver.Balance, amount); overflow {
			return ErrBalanceOverflow
		}
	}

	changes, err := l.hooks.OnTransfer(from, to, amount)
	if err != nil {
		return err
	}
	if from != to {
		sender.Balance.Sub(sender.Balance, amount)
		receiver.Balance.Add(receiver.Balance, amount)
		if err := l.state.PutAccount(from, sender); err != nil {
			return err
		}
		if err := l.state.PutAccount(to, receiver); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.Transfer{Asset: l.symbol, From: from, To: to, Amount: amount})
	l.emitAll(changes)
	return nil
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// spender's allowance unless it is unlimited.
func (l *Ledger) TransferFrom(spender, from, to types.AccountID, amount *uint256.Int) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	amount = amountOrZero(amount)
	if spender.IsNone() {
		return ErrZeroAddress
	}
	allowance, err := l.state.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}
	if err := l.Transfer(from, to, amount); err != nil {
		return err
	}
	if allowance.Eq(MaxAllowance) {
		return nil
	}
	remaining := new(uint256.Int).Sub(allowance, amount)
	if err := l.state.SetAllowance(from, spender, remaining); err != nil {
		return err
	}
	l.emitter.Emit(events.Approval{Owner: from, Spender: spender, Amount: remaining})
	return nil
}

// Approve sets the allowance spender may move on behalf of owner.
func (l *Ledger) Approve(owner, spender types.AccountID, amount *uint256.Int) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	amount = amountOrZero(amount)
	if owner.IsNone() || spender.IsNone() {
		return ErrZeroAddress
	}
	if err := l.state.SetAllowance(owner, spender, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Approval{Owner: owner, Spender: spender, Amount: amount})
	return nil
}

// IncreaseAllowance raises spender's allowance by delta.
func (l *Ledger) IncreaseAllowance(owner, spender types.AccountID, delta *uint256.Int) error {
	current, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	updated, overflow := new(uint256.Int).AddOverflow(current, amountOrZero(delta))
	if overflow {
		updated = MaxAllowance.Clone()
	}
	return l.Approve(owner, spender, updated)
}

// DecreaseAllowance lowers spender's allowance by delta.
func (l *Ledger) DecreaseAllowance(owner, spender types.AccountID, delta *uint256.Int) error {
	current, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	delta = amountOrZero(delta)
	if current.Lt(delta) {
		return ErrAllowanceUnderflow
	}
	return l.Approve(owner, spender, new(uint256.Int).Sub(current, delta))
}

// Freeze locks amount of account's balance so it can no longer be spent.
// Frozen tokens still count towards the balance and its voting power.
func (l *Ledger) Freeze(account types.AccountID, amount *uint256.Int) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	amount = amountOrZero(amount)
	if account.IsNone() {
		return ErrZeroAddress
	}
	acc, err := l.state.Account(account)
	if err != nil {
		return err
	}
	if acc.Available().Lt(amount) {
		return ErrUnavailableBalance
	}
	acc.Frozen.Add(acc.Frozen, amount)
	if err := l.state.PutAccount(account, acc); err != nil {
		return err
	}
	l.emitter.Emit(events.BalanceFrozen{Account: account, Frozen: acc.Frozen})
	return nil
}

// Unfreeze releases amount of account's frozen balance.
func (l *Ledger) Unfreeze(account types.AccountID, amount *uint256.Int) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	amount = amountOrZero(amount)
	if account.IsNone() {
		return ErrZeroAddress
	}
	acc, err := l.state.Account(account)
	if err != nil {
		return err
	}
	if acc.Frozen.Lt(amount) {
		return ErrInsufficientFrozen
	}
	acc.Frozen.Sub(acc.Frozen, amount)
	if err := l.state.PutAccount(account, acc); err != nil {
		return err
	}
	l.emitter.Emit(events.BalanceFrozen{Account: account, Frozen: acc.Frozen})
	return nil
}

// Pause halts mint, burn and transfers.
func (l *Ledger) Pause() error { return l.setPaused(true) }

// Unpause resumes token movements.
func (l *Ledger) Unpause() error { return l.setPaused(false) }

func (l *Ledger) setPaused(paused bool) error {
	if l.state == nil {
		return errStateNotConfigured
	}
	if err := l.state.SetPaused(paused); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenPaused{Paused: paused})
	return nil
}
