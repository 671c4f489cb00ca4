package events

import (
	"github.com/holiman/uint256"

	"voteledger/core/types"
)

const (
	// TypeTransfer is emitted for every balance movement, including mints
	// (empty from) and burns (empty to).
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted when an owner sets a spender allowance.
	TypeApproval = "token.approval"
	// TypeBalanceFrozen is emitted when the frozen part of a balance changes.
	TypeBalanceFrozen = "token.frozen"
	// TypeTokenPaused is emitted when token movements are halted or resumed.
	TypeTokenPaused = "token.paused"
)

type Transfer struct {
	Asset  string
	From   types.AccountID
	To     types.AccountID
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = formatAccount(e.From)
	attrs["to"] = formatAccount(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type Approval struct {
	Owner   types.AccountID
	Spender types.AccountID
	Amount  *uint256.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"owner":   formatAccount(e.Owner),
		"spender": formatAccount(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}

// BalanceFrozen reports the new frozen total of an account.
type BalanceFrozen struct {
	Account types.AccountID
	Frozen  *uint256.Int
}

func (BalanceFrozen) EventType() string { return TypeBalanceFrozen }

func (e BalanceFrozen) Event() *types.Event {
	return &types.Event{Type: TypeBalanceFrozen, Attributes: map[string]string{
		"account": formatAccount(e.Account),
		"frozen":  formatAmount(e.Frozen),
	}}
}

type TokenPaused struct {
	Paused bool
}

func (TokenPaused) EventType() string { return TypeTokenPaused }

func (e TokenPaused) Event() *types.Event {
	paused := "false"
	if e.Paused {
		paused = "true"
	}
	return &types.Event{Type: TypeTokenPaused, Attributes: map[string]string{"paused": paused}}
}
