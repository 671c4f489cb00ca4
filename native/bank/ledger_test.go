package bank

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"voteledger/core/events"
	ledgerstate "voteledger/core/state"
	"voteledger/core/types"
	"voteledger/storage"
	"voteledger/storage/trie"
)

type hookCall struct {
	kind     string
	from, to types.AccountID
	amount   uint64
}

type recordingHooks struct {
	calls  []hookCall
	staged []events.Event
	err    error
}

func (r *recordingHooks) OnMint(to types.AccountID, amount *uint256.Int) ([]events.Event, error) {
	r.calls = append(r.calls, hookCall{kind: "mint", to: to, amount: amount.Uint64()})
	return r.staged, r.err
}

func (r *recordingHooks) OnBurn(from types.AccountID, amount *uint256.Int) ([]events.Event, error) {
	r.calls = append(r.calls, hookCall{kind: "burn", from: from, amount: amount.Uint64()})
	return r.staged, r.err
}

func (r *recordingHooks) OnTransfer(from, to types.AccountID, amount *uint256.Int) ([]events.Event, error) {
	r.calls = append(r.calls, hookCall{kind: "transfer", from: from, to: to, amount: amount.Uint64()})
	return r.staged, r.err
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

var (
	ledgerAddr = types.AccountID{0xff}
	owner      = types.AccountID{0x01}
	spender    = types.AccountID{0x02}
	receiver   = types.AccountID{0x03}
)

func newTestLedger(t *testing.T) (*Ledger, *recordingHooks, *recordingEmitter) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	manager := ledgerstate.NewManager(tr)
	if err := manager.SetToken(&ledgerstate.TokenMetadata{Name: "Vote Token", Symbol: "VOTE", Decimals: 18}); err != nil {
		t.Fatalf("set token: %v", err)
	}
	hooks := &recordingHooks{}
	emitter := &recordingEmitter{}
	ledger := NewLedger(ledgerAddr, "VOTE")
	ledger.SetState(manager)
	ledger.SetHooks(hooks)
	ledger.SetEmitter(emitter)
	return ledger, hooks, emitter
}

func amt(v uint64) *uint256.Int { return uint256.NewInt(v) }

func mustBalance(t *testing.T, l *Ledger, id types.AccountID) uint64 {
	t.Helper()
	bal, err := l.BalanceOf(id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Uint64()
}

func TestMintAndBurn(t *testing.T) {
	l, hooks, emitter := newTestLedger(t)
	if err := l.Mint(owner, amt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Burn(owner, amt(10)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := mustBalance(t, l, owner); got != 990 {
		t.Fatalf("balance = %d", got)
	}
	supply, _ := l.TotalSupply()
	if supply.Uint64() != 990 {
		t.Fatalf("supply = %s", supply)
	}
	if len(hooks.calls) != 2 || hooks.calls[0].kind != "mint" || hooks.calls[1].kind != "burn" {
		t.Fatalf("unexpected hook calls %+v", hooks.calls)
	}
	transfer, ok := emitter.events[0].(events.Transfer)
	if !ok || !transfer.From.IsNone() || transfer.To != owner {
		t.Fatalf("unexpected mint event %+v", emitter.events[0])
	}

	if err := l.Burn(owner, amt(991)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := l.Mint(types.NoAccount, amt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

func TestHookFailureLeavesBalancesUntouched(t *testing.T) {
	l, hooks, emitter := newTestLedger(t)
	hooks.err = errors.New("overflow")
	if err := l.Mint(owner, amt(50)); err == nil {
		t.Fatalf("expected hook error")
	}
	if got := mustBalance(t, l, owner); got != 0 {
		t.Fatalf("balance changed after hook failure: %d", got)
	}
	supply, _ := l.TotalSupply()
	if !supply.IsZero() {
		t.Fatalf("supply changed after hook failure: %s", supply)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("events emitted after hook failure: %d", len(emitter.events))
	}
}

func TestTransferPrecedesHookEvents(t *testing.T) {
	l, hooks, emitter := newTestLedger(t)
	staged := events.DelegateVotesChanged{Delegate: owner, Previous: amt(0), Current: amt(70)}
	hooks.staged = []events.Event{staged}

	if err := l.Mint(owner, amt(70)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(emitter.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(emitter.events))
	}
	if _, ok := emitter.events[0].(events.Transfer); !ok {
		t.Fatalf("first event should be Transfer, got %T", emitter.events[0])
	}
	if _, ok := emitter.events[1].(events.DelegateVotesChanged); !ok {
		t.Fatalf("second event should be the hook's, got %T", emitter.events[1])
	}
	if _, ok := emitter.events[2].(events.TokenSupply); !ok {
		t.Fatalf("third event should be TokenSupply, got %T", emitter.events[2])
	}

	emitter.events = nil
	if err := l.Transfer(owner, receiver, amt(20)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	if _, ok := emitter.events[0].(events.Transfer); !ok {
		t.Fatalf("first event should be Transfer, got %T", emitter.events[0])
	}
}

func TestMintSupplyOverflowLeavesAccountUntouched(t *testing.T) {
	l, _, emitter := newTestLedger(t)
	ceiling := new(uint256.Int).SetAllOne()
	if err := l.Mint(owner, ceiling); err != nil {
		t.Fatalf("mint: %v", err)
	}
	emitter.events = nil
	if err := l.Mint(receiver, amt(1)); !errors.Is(err, ledgerstate.ErrSupplyOverflow) {
		t.Fatalf("expected ErrSupplyOverflow, got %v", err)
	}
	if got := mustBalance(t, l, receiver); got != 0 {
		t.Fatalf("balance credited after supply overflow: %d", got)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("events emitted after supply overflow: %d", len(emitter.events))
	}
}

func TestTransferRules(t *testing.T) {
	l, hooks, _ := newTestLedger(t)
	if err := l.Mint(owner, amt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	hooks.calls = nil

	if err := l.Transfer(owner, receiver, amt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := l.Transfer(owner, types.NoAccount, amt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := l.Transfer(owner, ledgerAddr, amt(1)); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if len(hooks.calls) != 0 {
		t.Fatalf("hooks called for rejected transfers: %+v", hooks.calls)
	}

	if err := l.Transfer(owner, receiver, amt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if mustBalance(t, l, owner) != 60 || mustBalance(t, l, receiver) != 40 {
		t.Fatalf("unexpected balances after transfer")
	}
	if err := l.Transfer(owner, owner, amt(60)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if mustBalance(t, l, owner) != 60 {
		t.Fatalf("self transfer changed balance")
	}
	want := hookCall{kind: "transfer", from: owner, to: receiver, amount: 40}
	if hooks.calls[0] != want {
		t.Fatalf("unexpected hook call %+v", hooks.calls[0])
	}
}

func TestFrozenAmountIsNotSpendable(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if err := l.Mint(owner, amt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Freeze(owner, amt(70)); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	available, _ := l.AvailableBalance(owner)
	if available.Uint64() != 30 {
		t.Fatalf("available = %s", available)
	}
	if err := l.Transfer(owner, receiver, amt(31)); !errors.Is(err, ErrUnavailableBalance) {
		t.Fatalf("expected ErrUnavailableBalance, got %v", err)
	}
	if err := l.Burn(owner, amt(31)); !errors.Is(err, ErrUnavailableBalance) {
		t.Fatalf("expected ErrUnavailableBalance on burn, got %v", err)
	}
	if err := l.Freeze(owner, amt(31)); !errors.Is(err, ErrUnavailableBalance) {
		t.Fatalf("expected over-freeze to fail, got %v", err)
	}
	if err := l.Unfreeze(owner, amt(71)); !errors.Is(err, ErrInsufficientFrozen) {
		t.Fatalf("expected ErrInsufficientFrozen, got %v", err)
	}
	if err := l.Unfreeze(owner, amt(70)); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if err := l.Transfer(owner, receiver, amt(100)); err != nil {
		t.Fatalf("transfer after unfreeze: %v", err)
	}
}

func TestPauseBlocksMovements(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if err := l.Mint(owner, amt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(owner, spender, amt(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := l.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := l.Transfer(owner, receiver, amt(1)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := l.TransferFrom(spender, owner, receiver, amt(1)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused on transferFrom, got %v", err)
	}
	if err := l.Mint(owner, amt(1)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused on mint, got %v", err)
	}
	if err := l.Unpause(); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := l.Transfer(owner, receiver, amt(1)); err != nil {
		t.Fatalf("transfer after unpause: %v", err)
	}
}

func TestAllowances(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if err := l.Mint(owner, amt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(owner, types.NoAccount, amt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := l.IncreaseAllowance(owner, spender, amt(50)); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := l.DecreaseAllowance(owner, spender, amt(10)); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if err := l.DecreaseAllowance(owner, spender, amt(41)); !errors.Is(err, ErrAllowanceUnderflow) {
		t.Fatalf("expected ErrAllowanceUnderflow, got %v", err)
	}
	if err := l.TransferFrom(spender, owner, receiver, amt(41)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := l.TransferFrom(spender, owner, receiver, amt(15)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	remaining, _ := l.Allowance(owner, spender)
	if remaining.Uint64() != 25 {
		t.Fatalf("allowance = %s, want 25", remaining)
	}

	if err := l.Approve(owner, spender, MaxAllowance); err != nil {
		t.Fatalf("approve unlimited: %v", err)
	}
	if err := l.TransferFrom(spender, owner, receiver, amt(5)); err != nil {
		t.Fatalf("transferFrom unlimited: %v", err)
	}
	unlimited, _ := l.Allowance(owner, spender)
	if !unlimited.Eq(MaxAllowance) {
		t.Fatalf("unlimited allowance decremented to %s", unlimited)
	}
}
