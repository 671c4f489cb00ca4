package types

import (
	"encoding/hex"

	"github.com/holiman/uint256"

	"voteledger/crypto"
)

// AccountID identifies a ledger account. The zero value is the NoAccount
// sentinel used wherever "no delegatee" or "mint/burn counterparty" is meant.
type AccountID [crypto.AddressLength]byte

// NoAccount is the distinguished "none" account.
var NoAccount AccountID

// IsNone reports whether the identifier is the NoAccount sentinel.
func (a AccountID) IsNone() bool { return a == NoAccount }

// Bytes returns a copy of the raw identifier.
func (a AccountID) Bytes() []byte { return append([]byte(nil), a[:]...) }

// Hex renders the identifier as a 0x-prefixed hexadecimal string.
func (a AccountID) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String renders the bech32 account form. NoAccount renders as the empty
// string so JSON payloads and event attributes read naturally.
func (a AccountID) String() string {
	if a.IsNone() {
		return ""
	}
	return crypto.MustNewAddress(crypto.AccountPrefix, a[:]).String()
}

// ParseAccountID decodes a bech32 or 0x-hex account string.
func ParseAccountID(raw string) (AccountID, error) {
	parsed, err := crypto.ParseAddress(raw)
	if err != nil {
		return NoAccount, err
	}
	return AccountID(parsed), nil
}

// Account is the persisted balance record of a ledger account. Frozen is the
// portion of Balance that cannot be spent until it is released.
type Account struct {
	Balance *uint256.Int
	Frozen  *uint256.Int
}

// Normalize replaces nil amounts with zero.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{Balance: new(uint256.Int), Frozen: new(uint256.Int)}
	}
	if a.Balance == nil {
		a.Balance = new(uint256.Int)
	}
	if a.Frozen == nil {
		a.Frozen = new(uint256.Int)
	}
	return a
}

// Clone returns a deep copy of the account record.
func (a *Account) Clone() *Account {
	if a == nil {
		return (*Account)(nil).Normalize()
	}
	clone := &Account{}
	if a.Balance != nil {
		clone.Balance = a.Balance.Clone()
	}
	if a.Frozen != nil {
		clone.Frozen = a.Frozen.Clone()
	}
	return clone.Normalize()
}

// Available returns the spendable part of the balance.
func (a *Account) Available() *uint256.Int {
	acc := a.Clone()
	if acc.Frozen.Gt(acc.Balance) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(acc.Balance, acc.Frozen)
}
