package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"voteledger/config"
	"voteledger/core"
	"voteledger/core/types"
	"voteledger/storage"
)

func TestResolveGenesisPathPrecedence(t *testing.T) {
	t.Setenv(genesisEnv, "")
	if got := resolveGenesisPath(" flag.yaml ", "config.yaml"); got != "flag.yaml" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := resolveGenesisPath("", "config.yaml"); got != "config.yaml" {
		t.Fatalf("config fallback, got %q", got)
	}
	t.Setenv(genesisEnv, "env.yaml")
	if got := resolveGenesisPath("", "config.yaml"); got != "env.yaml" {
		t.Fatalf("env should beat config, got %q", got)
	}
}

func TestApplyGenesisOnlyOnFreshLedger(t *testing.T) {
	holder := types.AccountID{0x11}
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	spec := "allocations:\n  - account: \"" + holder.Hex() + "\"\n    amount: \"500\"\n    delegate: self\n"
	if err := os.WriteFile(path, []byte(spec), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}

	db := storage.NewMemDB()
	defer db.Close()
	cfg := config.Default()
	address, err := cfg.LedgerAddress()
	if err != nil {
		t.Fatalf("ledger address: %v", err)
	}
	ledger, err := core.Open(db, core.Options{
		Name:    cfg.Ledger.Name,
		Symbol:  cfg.Ledger.Symbol,
		ChainID: cfg.Ledger.ChainID,
		Address: types.AccountID(address),
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	if err := applyGenesis(ledger, path, slog.Default()); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	votes, err := ledger.GetVotes(holder)
	if err != nil || votes.Uint64() != 500 {
		t.Fatalf("votes = %v, err %v", votes, err)
	}
	if _, _, err := ledger.AdvanceBlock(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := applyGenesis(ledger, path, slog.Default()); err != nil {
		t.Fatalf("re-apply on sealed ledger should be skipped: %v", err)
	}
	supply, err := ledger.TotalSupply()
	if err != nil || supply.Uint64() != 500 {
		t.Fatalf("supply = %v, err %v", supply, err)
	}
	if err := applyGenesis(ledger, "", slog.Default()); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}
