package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"voteledger/core/genesis"
	ledgerstate "voteledger/core/state"
	"voteledger/core/types"
	"voteledger/native/checkpoints"
	"voteledger/native/votes"
)

// ApplyGenesis mints the allocations and records their initial delegations as
// one atomic call. It runs at most once, before the first block is sealed.
func (l *Ledger) ApplyGenesis(allocs []genesis.Allocation) error {
	err := l.execute("genesis", func(s *session) error {
		if l.sealed || l.genesisApplied {
			return ErrGenesisApplied
		}
		for _, alloc := range allocs {
			if !alloc.Delegate.IsNone() {
				if err := s.votes.Delegate(alloc.Account, alloc.Delegate); err != nil {
					return fmt.Errorf("delegate %s: %w", alloc.Account, err)
				}
			}
			if err := s.bank.Mint(alloc.Account, alloc.Amount); err != nil {
				return fmt.Errorf("allocate %s: %w", alloc.Account, err)
			}
		}
		l.genesisApplied = true
		return nil
	})
	if errors.Is(err, ErrGenesisApplied) {
		return err
	}
	if err != nil {
		return fmt.Errorf("core: apply genesis: %w", err)
	}
	l.logger.Info("genesis applied", slog.Int("allocations", len(allocs)))
	return nil
}

// Token returns the metadata of the ledger token.
func (l *Ledger) Token() (*ledgerstate.TokenMetadata, error) {
	var meta *ledgerstate.TokenMetadata
	err := l.view(func(s *session) error {
		var err error
		meta, err = s.state.Token()
		return err
	})
	return meta, err
}

// Domain returns the signing domain of delegations.
func (l *Ledger) Domain() votes.Domain { return l.domain }

// DomainSeparator returns the EIP-712 domain separator.
func (l *Ledger) DomainSeparator() ([]byte, error) { return l.domain.Separator() }

// Delegation

func (l *Ledger) Delegate(delegator, delegatee types.AccountID) error {
	return l.execute("delegate", func(s *session) error {
		return s.votes.Delegate(delegator, delegatee)
	})
}

// DelegateBySig applies a signed delegation and returns the recovered signer.
func (l *Ledger) DelegateBySig(delegatee types.AccountID, nonce uint64, expiry *uint256.Int, sig votes.Signature) (types.AccountID, error) {
	var signer types.AccountID
	err := l.execute("delegate_by_sig", func(s *session) error {
		var err error
		signer, err = s.votes.DelegateBySig(delegatee, nonce, expiry, sig)
		return err
	})
	if err != nil {
		return types.NoAccount, err
	}
	return signer, nil
}

func (l *Ledger) ResetDelegation(delegator types.AccountID) error {
	return l.execute("reset_delegation", func(s *session) error {
		return s.votes.ResetDelegation(delegator)
	})
}

func (l *Ledger) Delegates(account types.AccountID) (types.AccountID, error) {
	var out types.AccountID
	err := l.view(func(s *session) error {
		var err error
		out, err = s.votes.Delegates(account)
		return err
	})
	return out, err
}

// Voting power queries

func (l *Ledger) GetVotes(account types.AccountID) (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.votes.GetVotes(account) })
}

func (l *Ledger) GetPastVotes(account types.AccountID, block uint64) (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.votes.GetPastVotes(account, block) })
}

func (l *Ledger) GetPastTotalSupply(block uint64) (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.votes.GetPastTotalSupply(block) })
}

func (l *Ledger) NumCheckpoints(account types.AccountID) (uint64, error) {
	var n uint64
	err := l.view(func(s *session) error {
		var err error
		n, err = s.votes.NumCheckpoints(account)
		return err
	})
	return n, err
}

func (l *Ledger) Checkpoint(account types.AccountID, pos uint64) (checkpoints.Checkpoint, error) {
	var cp checkpoints.Checkpoint
	err := l.view(func(s *session) error {
		var err error
		cp, err = s.votes.Checkpoint(account, pos)
		return err
	})
	return cp, err
}

func (l *Ledger) Nonces(account types.AccountID) (uint64, error) {
	var n uint64
	err := l.view(func(s *session) error {
		var err error
		n, err = s.votes.Nonces(account)
		return err
	})
	return n, err
}

// Balances

func (l *Ledger) BalanceOf(account types.AccountID) (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.bank.BalanceOf(account) })
}

func (l *Ledger) AvailableBalance(account types.AccountID) (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.bank.AvailableBalance(account) })
}

func (l *Ledger) FrozenBalance(account types.AccountID) (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.bank.FrozenBalance(account) })
}

func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.bank.TotalSupply() })
}

func (l *Ledger) Allowance(owner, spender types.AccountID) (*uint256.Int, error) {
	return l.amount(func(s *session) (*uint256.Int, error) { return s.bank.Allowance(owner, spender) })
}

func (l *Ledger) Paused() (bool, error) {
	var paused bool
	err := l.view(func(s *session) error {
		var err error
		paused, err = s.state.Paused()
		return err
	})
	return paused, err
}

func (l *Ledger) amount(read func(*session) (*uint256.Int, error)) (*uint256.Int, error) {
	var out *uint256.Int
	err := l.view(func(s *session) error {
		var err error
		out, err = read(s)
		return err
	})
	return out, err
}

// Balance mutations

func (l *Ledger) Mint(to types.AccountID, amount *uint256.Int) error {
	return l.execute("mint", func(s *session) error { return s.bank.Mint(to, amount) })
}

func (l *Ledger) Burn(from types.AccountID, amount *uint256.Int) error {
	return l.execute("burn", func(s *session) error { return s.bank.Burn(from, amount) })
}

func (l *Ledger) Transfer(from, to types.AccountID, amount *uint256.Int) error {
	return l.execute("transfer", func(s *session) error { return s.bank.Transfer(from, to, amount) })
}

func (l *Ledger) TransferFrom(spender, from, to types.AccountID, amount *uint256.Int) error {
	return l.execute("transfer_from", func(s *session) error {
		return s.bank.TransferFrom(spender, from, to, amount)
	})
}

func (l *Ledger) Approve(owner, spender types.AccountID, amount *uint256.Int) error {
	return l.execute("approve", func(s *session) error { return s.bank.Approve(owner, spender, amount) })
}

func (l *Ledger) IncreaseAllowance(owner, spender types.AccountID, delta *uint256.Int) error {
	return l.execute("increase_allowance", func(s *session) error {
		return s.bank.IncreaseAllowance(owner, spender, delta)
	})
}

func (l *Ledger) DecreaseAllowance(owner, spender types.AccountID, delta *uint256.Int) error {
	return l.execute("decrease_allowance", func(s *session) error {
		return s.bank.DecreaseAllowance(owner, spender, delta)
	})
}

func (l *Ledger) Freeze(account types.AccountID, amount *uint256.Int) error {
	return l.execute("freeze", func(s *session) error { return s.bank.Freeze(account, amount) })
}

func (l *Ledger) Unfreeze(account types.AccountID, amount *uint256.Int) error {
	return l.execute("unfreeze", func(s *session) error { return s.bank.Unfreeze(account, amount) })
}

func (l *Ledger) Pause() error {
	return l.execute("pause", func(s *session) error { return s.bank.Pause() })
}

func (l *Ledger) Unpause() error {
	return l.execute("unpause", func(s *session) error { return s.bank.Unpause() })
}
