package state

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	// ErrSupplyOverflow is returned when a mint would wrap the stored supply.
	ErrSupplyOverflow = errors.New("state: token supply overflow")
	// ErrSupplyUnderflow is returned when a burn exceeds the stored supply.
	ErrSupplyUnderflow = errors.New("state: token supply underflow")
)

// TokenSupply returns the persisted total supply. Missing entries default to
// zero.
func (m *Manager) TokenSupply() (*uint256.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("state manager unavailable")
	}
	total := new(uint256.Int)
	if _, err := m.KVGet(tokenSupplyKeyBytes, total); err != nil {
		return nil, err
	}
	return total, nil
}

// AdjustTokenSupply applies a mint (burn=false) or burn delta to the stored
// total supply and returns the updated total. Nothing is written on error.
func (m *Manager) AdjustTokenSupply(delta *uint256.Int, burn bool) (*uint256.Int, error) {
	current, err := m.TokenSupply()
	if err != nil {
		return nil, err
	}
	if delta == nil || delta.IsZero() {
		return current, nil
	}
	updated := new(uint256.Int)
	if burn {
		if current.Lt(delta) {
			return nil, fmt.Errorf("%w: burning %s of %s", ErrSupplyUnderflow, delta.Dec(), current.Dec())
		}
		updated.Sub(current, delta)
	} else if _, overflow := updated.AddOverflow(current, delta); overflow {
		return nil, ErrSupplyOverflow
	}
	if err := m.KVPut(tokenSupplyKeyBytes, updated); err != nil {
		return nil, err
	}
	return updated, nil
}
