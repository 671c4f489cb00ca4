package events

import (
	"github.com/holiman/uint256"

	"voteledger/core/types"
)

const (
	// TypeDelegateeChanged is emitted whenever a delegator selects a delegatee.
	TypeDelegateeChanged = "votes.delegatee_changed"
	// TypeDelegateVotesChanged is emitted when a delegate's voting power moves.
	TypeDelegateVotesChanged = "votes.power_changed"
)

// DelegateeChanged records a delegator switching from one delegatee to
// another. Either side may be NoAccount.
type DelegateeChanged struct {
	Delegator types.AccountID
	From      types.AccountID
	To        types.AccountID
}

func (DelegateeChanged) EventType() string { return TypeDelegateeChanged }

func (e DelegateeChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeDelegateeChanged,
		Attributes: map[string]string{
			"delegator": formatAccount(e.Delegator),
			"from":      formatAccount(e.From),
			"to":        formatAccount(e.To),
		},
	}
}

// DelegateVotesChanged records the previous and new current voting power of a
// delegate.
type DelegateVotesChanged struct {
	Delegate types.AccountID
	Previous *uint256.Int
	Current  *uint256.Int
}

func (DelegateVotesChanged) EventType() string { return TypeDelegateVotesChanged }

func (e DelegateVotesChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeDelegateVotesChanged,
		Attributes: map[string]string{
			"delegate": formatAccount(e.Delegate),
			"previous": formatAmount(e.Previous),
			"current":  formatAmount(e.Current),
		},
	}
}
