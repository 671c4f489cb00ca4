package votes

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"

	"voteledger/core/types"
)

// DelegationPrimaryType is the EIP-712 primary type of a signed delegation.
const DelegationPrimaryType = "Delegation"

var delegationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	DelegationPrimaryType: {
		{Name: "delegatee", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "expiry", Type: "uint256"},
	},
}

// Recoverer attributes a signature over digest to the account that produced
// it.
type Recoverer interface {
	Recover(digest []byte, sig Signature) (types.AccountID, error)
}

// EIP712Recoverer recovers secp256k1 signers, rejecting malleable (high-s)
// signatures.
type EIP712Recoverer struct{}

// Recover implements Recoverer.
func (EIP712Recoverer) Recover(digest []byte, sig Signature) (types.AccountID, error) {
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	v := sig.recoveryID()
	if v > 1 || !ethcrypto.ValidateSignatureValues(v, r, s, true) {
		return types.NoAccount, ErrInvalidSignature
	}
	pub, err := ethcrypto.SigToPub(digest, sig.Bytes())
	if err != nil {
		return types.NoAccount, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return types.AccountID(ethcrypto.PubkeyToAddress(*pub)), nil
}

// TypedData assembles the EIP-712 payload an off-line signer must sign to
// delegate to delegatee.
func (d Domain) TypedData(delegatee types.AccountID, nonce uint64, expiry *uint256.Int) apitypes.TypedData {
	if expiry == nil {
		expiry = new(uint256.Int)
	}
	return apitypes.TypedData{
		Types:       delegationTypes,
		PrimaryType: DelegationPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(d.ChainID)),
			VerifyingContract: common.Address(d.VerifyingContract).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"delegatee": common.Address(delegatee).Hex(),
			"nonce":     strconv.FormatUint(nonce, 10),
			"expiry":    expiry.Dec(),
		},
	}
}

// Separator returns the EIP-712 domain separator hash.
func (d Domain) Separator() ([]byte, error) {
	typed := d.TypedData(types.NoAccount, 0, nil)
	sep, err := typed.HashStruct("EIP712Domain", typed.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("votes: hash domain: %w", err)
	}
	return sep, nil
}

// DelegationDigest returns the 32-byte digest signed for a delegation.
func (d Domain) DelegationDigest(delegatee types.AccountID, nonce uint64, expiry *uint256.Int) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(d.TypedData(delegatee, nonce, expiry))
	if err != nil {
		return nil, fmt.Errorf("votes: hash delegation: %w", err)
	}
	return digest, nil
}

// DelegateBySig applies a delegation authorised off-line by the signer of sig.
// Checks run in order: signature, expiry, nonce. A signature made over a
// different delegatee recovers some other account and delegates on its
// behalf. The recovered signer is returned.
func (e *Engine) DelegateBySig(delegatee types.AccountID, nonce uint64, expiry *uint256.Int, sig Signature) (types.AccountID, error) {
	if e.state == nil {
		return types.NoAccount, errStateNotConfigured
	}
	if expiry == nil {
		expiry = new(uint256.Int)
	}
	digest, err := e.domain.DelegationDigest(delegatee, nonce, expiry)
	if err != nil {
		return types.NoAccount, err
	}
	signer, err := e.recoverer.Recover(digest, sig)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return types.NoAccount, err
		}
		return types.NoAccount, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer.IsNone() {
		return types.NoAccount, ErrInvalidSignature
	}

	if uint256.NewInt(uint64(e.nowFn().Unix())).Gt(expiry) {
		return types.NoAccount, ErrSignatureExpired
	}

	expected, err := e.Nonces(signer)
	if err != nil {
		return types.NoAccount, err
	}
	if nonce != expected {
		return types.NoAccount, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonce, nonce, expected)
	}
	if err := e.state.KVPut(keyFor(noncePrefix, signer), expected+1); err != nil {
		return types.NoAccount, fmt.Errorf("votes: store nonce: %w", err)
	}
	if err := e.Delegate(signer, delegatee); err != nil {
		return types.NoAccount, err
	}
	return signer, nil
}
