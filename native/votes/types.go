package votes

import (
	"errors"

	"github.com/holiman/uint256"

	"voteledger/core/types"
)

var (
	// ErrBlockNotMined is returned by historical queries for the current or a
	// future block, whose final values are not known yet.
	ErrBlockNotMined = errors.New("votes: block not yet mined")
	// ErrSupplyOverflow is returned when a mint would push the total supply
	// past MaxVotes.
	ErrSupplyOverflow = errors.New("votes: total supply exceeds vote capacity")
	// ErrVotesUnderflow signals a delegate losing more votes than it holds.
	// Conservation makes this unreachable unless state is corrupt.
	ErrVotesUnderflow = errors.New("votes: delegate votes underflow")
	// ErrInvalidSignature is returned when a signed delegation cannot be
	// attributed to a signer.
	ErrInvalidSignature = errors.New("votes: invalid signature")
	// ErrSignatureExpired is returned when a signed delegation is used after
	// its expiry.
	ErrSignatureExpired = errors.New("votes: signature expired")
	// ErrInvalidNonce is returned when a signed delegation carries a nonce
	// other than the signer's next expected nonce.
	ErrInvalidNonce = errors.New("votes: invalid nonce")
	// ErrCheckpointNotFound is returned for positional reads past the end of
	// an account's history.
	ErrCheckpointNotFound = errors.New("votes: checkpoint not found")

	errStateNotConfigured = errors.New("votes: state not configured")
)

// MaxVotes is the largest voting power (and total supply) the engine can
// represent: 2^96 - 1.
var MaxVotes = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 96), uint256.NewInt(1))

// Domain scopes signed delegations to one ledger deployment.
type Domain struct {
	Name              string
	ChainID           uint64
	VerifyingContract types.AccountID
}

// Signature is a secp256k1 signature split into its recovery id and scalars.
// V may be given either as 0/1 or in the legacy 27/28 form.
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// SignatureFromBytes splits a 65-byte [R || S || V] signature.
func SignatureFromBytes(raw []byte) (Signature, error) {
	var sig Signature
	if len(raw) != 65 {
		return sig, ErrInvalidSignature
	}
	copy(sig.R[:], raw[:32])
	copy(sig.S[:], raw[32:64])
	sig.V = raw[64]
	return sig, nil
}

// Bytes renders the signature as [R || S || V] with V normalised to 0/1.
func (s Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.recoveryID()
	return out
}

func (s Signature) recoveryID() byte {
	if s.V >= 27 {
		return s.V - 27
	}
	return s.V
}
