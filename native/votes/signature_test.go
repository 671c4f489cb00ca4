package votes

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"voteledger/core/events"
	"voteledger/core/types"
	"voteledger/crypto"
)

type signer struct {
	key *crypto.PrivateKey
	id  types.AccountID
}

func newSigner(t *testing.T) signer {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var id types.AccountID
	copy(id[:], key.PubKey().Address().Bytes())
	return signer{key: key, id: id}
}

func (s signer) sign(t *testing.T, domain Domain, delegatee types.AccountID, nonce uint64, expiry *uint256.Int) Signature {
	t.Helper()
	digest, err := domain.DelegationDigest(delegatee, nonce, expiry)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	raw, err := s.key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig, err := SignatureFromBytes(raw)
	if err != nil {
		t.Fatalf("split signature: %v", err)
	}
	sig.V += 27
	return sig
}

var farExpiry = new(uint256.Int).SetAllOne()

func TestDelegateBySigAcceptsSignedDelegation(t *testing.T) {
	h := newHarness(t)
	delegator := newSigner(t)
	h.mint(delegator.id, 1000)
	h.emitter.events = nil

	sig := delegator.sign(t, h.engine.domain, delegator.id, 0, farExpiry)
	got, err := h.engine.DelegateBySig(delegator.id, 0, farExpiry, sig)
	if err != nil {
		t.Fatalf("delegate by sig: %v", err)
	}
	if got != delegator.id {
		t.Fatalf("recovered %v, want %v", got, delegator.id)
	}
	delegatee, _ := h.engine.Delegates(delegator.id)
	if delegatee != delegator.id {
		t.Fatalf("delegatee = %v", delegatee)
	}
	nonce, _ := h.engine.Nonces(delegator.id)
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce)
	}
	if got := h.votes(delegator.id); got != 1000 {
		t.Fatalf("votes = %d", got)
	}
	changed := h.emitter.ofType(events.TypeDelegateeChanged)
	if len(changed) != 1 || changed[0].(events.DelegateeChanged).Delegator != delegator.id {
		t.Fatalf("unexpected delegatee events %+v", changed)
	}

	if _, err := h.engine.DelegateBySig(delegator.id, 0, farExpiry, sig); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("replay: expected ErrInvalidNonce, got %v", err)
	}
}

func TestDelegateBySigRejectsBadNonce(t *testing.T) {
	h := newHarness(t)
	delegator := newSigner(t)
	sig := delegator.sign(t, h.engine.domain, delegator.id, 1, farExpiry)
	if _, err := h.engine.DelegateBySig(delegator.id, 1, farExpiry, sig); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}
	if nonce, _ := h.engine.Nonces(delegator.id); nonce != 0 {
		t.Fatalf("nonce advanced on failure: %d", nonce)
	}
}

func TestDelegateBySigRejectsExpired(t *testing.T) {
	h := newHarness(t)
	now := time.Unix(1_700_000_000, 0)
	h.engine.SetNowFunc(func() time.Time { return now })
	delegator := newSigner(t)
	expiry := uint256.NewInt(uint64(now.Unix()) - 1)
	sig := delegator.sign(t, h.engine.domain, delegator.id, 0, expiry)
	if _, err := h.engine.DelegateBySig(delegator.id, 0, expiry, sig); !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected ErrSignatureExpired, got %v", err)
	}

	exact := uint256.NewInt(uint64(now.Unix()))
	sig = delegator.sign(t, h.engine.domain, delegator.id, 0, exact)
	if _, err := h.engine.DelegateBySig(delegator.id, 0, exact, sig); err != nil {
		t.Fatalf("expiry equal to now should be accepted: %v", err)
	}
}

func TestDelegateBySigWithWrongDelegateeRecoversOtherSigner(t *testing.T) {
	h := newHarness(t)
	delegator := newSigner(t)
	sig := delegator.sign(t, h.engine.domain, delegator.id, 0, farExpiry)

	got, err := h.engine.DelegateBySig(other, 0, farExpiry, sig)
	if err != nil {
		t.Fatalf("expected garbage signer to be accepted, got %v", err)
	}
	if got == delegator.id {
		t.Fatalf("signature over another delegatee must not recover the delegator")
	}
	delegatee, _ := h.engine.Delegates(got)
	if delegatee != other {
		t.Fatalf("garbage signer delegatee = %v", delegatee)
	}
	if d, _ := h.engine.Delegates(delegator.id); !d.IsNone() {
		t.Fatalf("delegator should be untouched, has %v", d)
	}
}

func TestDelegateBySigRejectsMalformedSignature(t *testing.T) {
	h := newHarness(t)
	delegator := newSigner(t)
	sig := delegator.sign(t, h.engine.domain, delegator.id, 0, farExpiry)

	badV := sig
	badV.V = 5
	if _, err := h.engine.DelegateBySig(delegator.id, 0, farExpiry, badV); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for bad v, got %v", err)
	}
	zeroR := sig
	zeroR.R = [32]byte{}
	if _, err := h.engine.DelegateBySig(delegator.id, 0, farExpiry, zeroR); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for zero r, got %v", err)
	}
}

type fakeRecoverer struct {
	account types.AccountID
	err     error
}

func (f fakeRecoverer) Recover([]byte, Signature) (types.AccountID, error) {
	return f.account, f.err
}

func TestDelegateBySigChecksSignatureBeforeExpiry(t *testing.T) {
	h := newHarness(t)
	h.engine.SetNowFunc(func() time.Time { return time.Unix(100, 0) })
	h.engine.SetRecoverer(fakeRecoverer{err: errors.New("unrecoverable")})

	_, err := h.engine.DelegateBySig(holder, 0, uint256.NewInt(1), Signature{})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature ahead of expiry, got %v", err)
	}

	h.engine.SetRecoverer(fakeRecoverer{account: holder})
	_, err = h.engine.DelegateBySig(recipient, 3, uint256.NewInt(1), Signature{})
	if !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected ErrSignatureExpired ahead of nonce, got %v", err)
	}

	h.engine.SetRecoverer(fakeRecoverer{})
	if _, err := h.engine.DelegateBySig(recipient, 0, farExpiry, Signature{}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected empty signer to be rejected, got %v", err)
	}
}

func TestDomainSeparator(t *testing.T) {
	a := Domain{Name: "Vote Token", ChainID: 1, VerifyingContract: types.AccountID{0x11}}
	b := a
	b.ChainID = 2

	sepA, err := a.Separator()
	if err != nil {
		t.Fatalf("separator: %v", err)
	}
	again, _ := a.Separator()
	sepB, _ := b.Separator()
	if len(sepA) != 32 {
		t.Fatalf("separator length = %d", len(sepA))
	}
	if !bytes.Equal(sepA, again) {
		t.Fatalf("separator not deterministic")
	}
	if bytes.Equal(sepA, sepB) {
		t.Fatalf("separator ignores chain id")
	}

	digestA, _ := a.DelegationDigest(holder, 0, farExpiry)
	digestB, _ := b.DelegationDigest(holder, 0, farExpiry)
	if bytes.Equal(digestA, digestB) {
		t.Fatalf("delegation digest ignores domain")
	}
}
