package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"voteledger/core/types"
)

// Spec is the YAML genesis document applied to a fresh ledger.
type Spec struct {
	Allocations []AllocationSpec `yaml:"allocations"`
}

// AllocationSpec mints Amount to Account at the first block. Delegate may be
// empty (no delegation), "self", or another account.
type AllocationSpec struct {
	Account  string `yaml:"account"`
	Amount   string `yaml:"amount"`
	Delegate string `yaml:"delegate,omitempty"`
}

// Allocation is a validated AllocationSpec.
type Allocation struct {
	Account  types.AccountID
	Amount   *uint256.Int
	Delegate types.AccountID
}

// LoadSpec reads and decodes a genesis file, rejecting unknown fields.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return ParseSpec(raw)
}

// ParseSpec decodes a genesis document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	return &spec, nil
}

// ResolveAllocations validates every allocation and parses its amounts and
// accounts. Duplicate accounts are rejected.
func (s *Spec) ResolveAllocations() ([]Allocation, error) {
	if s == nil {
		return nil, nil
	}
	seen := make(map[types.AccountID]struct{}, len(s.Allocations))
	out := make([]Allocation, 0, len(s.Allocations))
	for i, spec := range s.Allocations {
		account, err := types.ParseAccountID(spec.Account)
		if err != nil {
			return nil, fmt.Errorf("allocation %d: account: %w", i, err)
		}
		if account.IsNone() {
			return nil, fmt.Errorf("allocation %d: zero account", i)
		}
		if _, dup := seen[account]; dup {
			return nil, fmt.Errorf("allocation %d: duplicate account %s", i, account)
		}
		seen[account] = struct{}{}

		amount, err := uint256.FromDecimal(strings.TrimSpace(spec.Amount))
		if err != nil {
			return nil, fmt.Errorf("allocation %d: amount %q: %w", i, spec.Amount, err)
		}

		delegate := types.NoAccount
		switch trimmed := strings.TrimSpace(spec.Delegate); strings.ToLower(trimmed) {
		case "":
		case "self":
			delegate = account
		default:
			if delegate, err = types.ParseAccountID(trimmed); err != nil {
				return nil, fmt.Errorf("allocation %d: delegate: %w", i, err)
			}
		}
		out = append(out, Allocation{Account: account, Amount: amount, Delegate: delegate})
	}
	return out, nil
}
