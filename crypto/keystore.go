package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	// ErrKeystoreExists is returned when WriteKeystore would replace a file.
	ErrKeystoreExists = errors.New("crypto: keystore file already exists")
	// ErrKeystoreMismatch is returned when the address recorded in a keystore
	// does not belong to the key it decrypts to.
	ErrKeystoreMismatch = errors.New("crypto: keystore address does not match its key")
)

// Signer is a decrypted delegator key together with the account it controls.
type Signer struct {
	Key     *PrivateKey
	Account [AddressLength]byte
}

// Address renders the signer's account with the ledger prefix.
func (s *Signer) Address() Address {
	return NewAddress(AccountPrefix, s.Account[:])
}

// WriteKeystore encrypts key with passphrase into a v3 keystore at path and
// returns the signer it holds. The file appears atomically with mode 0600 and
// an existing file is never replaced.
func WriteKeystore(path string, key *PrivateKey, passphrase string) (*Signer, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeystoreExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	signer := &Signer{Key: key}
	copy(signer.Account[:], key.PubKey().Address().Bytes())
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    common.Address(signer.Account),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		return nil, fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Write(encrypted); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	// Link fails on an existing target, unlike Rename.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeystoreExists, path)
		}
		return nil, err
	}
	return signer, nil
}

// OpenKeystore decrypts the keystore at path and returns its signer.
func OpenKeystore(path, passphrase string) (*Signer, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt keystore %s: %w", filepath.Base(path), err)
	}
	signer := &Signer{Key: &PrivateKey{PrivateKey: decrypted.PrivateKey}}
	copy(signer.Account[:], decrypted.Address.Bytes())

	var header struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(keyJSON, &header); err != nil {
		return nil, fmt.Errorf("crypto: parse keystore %s: %w", filepath.Base(path), err)
	}
	if header.Address != "" {
		recorded, err := hex.DecodeString(strings.TrimPrefix(header.Address, "0x"))
		if err != nil || !bytes.Equal(recorded, signer.Account[:]) {
			return nil, fmt.Errorf("%w: %s", ErrKeystoreMismatch, filepath.Base(path))
		}
	}
	return signer, nil
}
