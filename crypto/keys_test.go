package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AccountPrefix)+"1") {
		t.Fatalf("unexpected prefix: %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), addr.Bytes()) {
		t.Fatalf("round trip mismatch")
	}

	fromBech, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	fromHex, err := ParseAddress(addr.Hex())
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if fromBech != fromHex {
		t.Fatalf("bech32 and hex parse disagree: %x vs %x", fromBech, fromHex)
	}
}

func TestParseAddressRejectsShortHex(t *testing.T) {
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatalf("expected error for short hex address")
	}
	if _, err := ParseAddress("   "); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestSignRecoversAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := ethcrypto.Keccak256([]byte("delegation"))
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	if !bytes.Equal(recovered.Bytes(), key.PubKey().Address().Bytes()) {
		t.Fatalf("recovered %x want %x", recovered.Bytes(), key.PubKey().Address().Bytes())
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "signer.keystore")
	written, err := WriteKeystore(path, key, "correct horse")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(written.Account[:], key.PubKey().Address().Bytes()) {
		t.Fatalf("written signer account mismatch")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("keystore mode = %o", perm)
	}

	opened, err := OpenKeystore(path, "correct horse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened.Key.Bytes(), key.Bytes()) {
		t.Fatalf("opened key mismatch")
	}
	if opened.Account != written.Account || opened.Address().String() != key.PubKey().Address().String() {
		t.Fatalf("opened account %x want %x", opened.Account, written.Account)
	}
	if _, err := OpenKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

func TestWriteKeystoreRefusesOverwrite(t *testing.T) {
	first, _ := GeneratePrivateKey()
	second, _ := GeneratePrivateKey()
	path := filepath.Join(t.TempDir(), "signer.keystore")
	if _, err := WriteKeystore(path, first, "pass"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := WriteKeystore(path, second, "pass"); !errors.Is(err, ErrKeystoreExists) {
		t.Fatalf("expected ErrKeystoreExists, got %v", err)
	}
	opened, err := OpenKeystore(path, "pass")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened.Key.Bytes(), first.Bytes()) {
		t.Fatalf("keystore was replaced")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}

func TestOpenKeystoreRejectsForeignAddress(t *testing.T) {
	key, _ := GeneratePrivateKey()
	path := filepath.Join(t.TempDir(), "signer.keystore")
	if _, err := WriteKeystore(path, key, "pass"); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	doc["address"] = strings.Repeat("ab", AddressLength)
	tampered, _ := json.Marshal(doc)
	if err := os.WriteFile(path, tampered, 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := OpenKeystore(path, "pass"); !errors.Is(err, ErrKeystoreMismatch) {
		t.Fatalf("expected ErrKeystoreMismatch, got %v", err)
	}
}
