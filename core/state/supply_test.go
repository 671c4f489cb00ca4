package state

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestAdjustTokenSupply(t *testing.T) {
	manager := newTestManager(t)

	total, err := manager.TokenSupply()
	if err != nil {
		t.Fatalf("initial supply: %v", err)
	}
	if !total.IsZero() {
		t.Fatalf("expected zero supply, got %s", total)
	}

	updated, err := manager.AdjustTokenSupply(uint256.NewInt(1000), false)
	if err != nil {
		t.Fatalf("adjust supply: %v", err)
	}
	if updated.Uint64() != 1000 {
		t.Fatalf("unexpected supply after mint: %s", updated)
	}

	updated, err = manager.AdjustTokenSupply(uint256.NewInt(250), true)
	if err != nil {
		t.Fatalf("burn supply: %v", err)
	}
	if updated.Uint64() != 750 {
		t.Fatalf("unexpected supply after burn: %s", updated)
	}

	if _, err = manager.AdjustTokenSupply(uint256.NewInt(1000), true); !errors.Is(err, ErrSupplyUnderflow) {
		t.Fatalf("expected ErrSupplyUnderflow, got %v", err)
	}
	ceiling := new(uint256.Int).SetAllOne()
	if _, err = manager.AdjustTokenSupply(ceiling, false); !errors.Is(err, ErrSupplyOverflow) {
		t.Fatalf("expected ErrSupplyOverflow, got %v", err)
	}
	total, err = manager.TokenSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if total.Uint64() != 750 {
		t.Fatalf("rejected adjustments changed supply to %s", total)
	}
}
