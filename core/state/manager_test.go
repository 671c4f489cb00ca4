package state

import (
	"testing"

	"github.com/holiman/uint256"

	"voteledger/core/types"
	"voteledger/storage"
	"voteledger/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestAccountDefaultsToZero(t *testing.T) {
	mgr := newTestManager(t)
	var addr [20]byte
	addr[19] = 1

	account, err := mgr.Account(addr)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !account.Balance.IsZero() || !account.Frozen.IsZero() {
		t.Fatalf("expected zero account, got %+v", account)
	}

	account.Balance = uint256.NewInt(500)
	account.Frozen = uint256.NewInt(200)
	if err := mgr.PutAccount(addr, account); err != nil {
		t.Fatalf("put account: %v", err)
	}
	reloaded, err := mgr.Account(addr)
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if reloaded.Balance.Uint64() != 500 || reloaded.Frozen.Uint64() != 200 {
		t.Fatalf("unexpected account: balance=%s frozen=%s", reloaded.Balance, reloaded.Frozen)
	}
	if reloaded.Available().Uint64() != 300 {
		t.Fatalf("unexpected available balance: %s", reloaded.Available())
	}
}

func TestPutAccountRejectsOverFrozen(t *testing.T) {
	mgr := newTestManager(t)
	err := mgr.PutAccount([20]byte{1}, &types.Account{
		Balance: uint256.NewInt(10),
		Frozen:  uint256.NewInt(11),
	})
	if err == nil {
		t.Fatalf("expected frozen > balance to be rejected")
	}
}

func TestAllowanceReadWrite(t *testing.T) {
	mgr := newTestManager(t)
	owner, spender := [20]byte{1}, [20]byte{2}

	if err := mgr.SetAllowance(owner, spender, uint256.NewInt(42)); err != nil {
		t.Fatalf("set allowance: %v", err)
	}
	got, err := mgr.Allowance(owner, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if got.Uint64() != 42 {
		t.Fatalf("unexpected allowance: %s", got)
	}
	reverse, err := mgr.Allowance(spender, owner)
	if err != nil {
		t.Fatalf("reverse allowance: %v", err)
	}
	if !reverse.IsZero() {
		t.Fatalf("allowance leaked across directions: %s", reverse)
	}
}

func TestTokenPausedFlag(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.SetPaused(true); err == nil {
		t.Fatalf("expected pause without metadata to fail")
	}
	if err := mgr.SetToken(&TokenMetadata{Name: "Vote Token", Symbol: " vote ", Decimals: 18}); err != nil {
		t.Fatalf("set token: %v", err)
	}
	meta, err := mgr.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if meta.Symbol != "VOTE" {
		t.Fatalf("symbol not normalised: %q", meta.Symbol)
	}
	if err := mgr.SetPaused(true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, err := mgr.Paused()
	if err != nil || !paused {
		t.Fatalf("expected paused, got %v (%v)", paused, err)
	}
}
