package state

import (
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"voteledger/core/types"
	"voteledger/storage/trie"
)

// Manager provides typed access to the ledger state stored in the trie. Every
// key is hashed with keccak256 before it reaches the trie.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// TokenMetadata describes the single fungible token tracked by the ledger.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
	Paused   bool
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Token returns the stored token metadata, or nil when none was registered.
func (m *Manager) Token() (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := m.KVGet(tokenMetadataKeyBytes, meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return meta, nil
}

// SetToken stores the token metadata after normalising the symbol.
func (m *Manager) SetToken(meta *TokenMetadata) error {
	if meta == nil {
		return fmt.Errorf("token metadata required")
	}
	normalized := *meta
	normalized.Symbol = strings.ToUpper(strings.TrimSpace(meta.Symbol))
	if normalized.Symbol == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(normalized.Name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized.Symbol)
	}
	return m.KVPut(tokenMetadataKeyBytes, &normalized)
}

// Paused reports whether token movements are currently halted.
func (m *Manager) Paused() (bool, error) {
	meta, err := m.Token()
	if err != nil || meta == nil {
		return false, err
	}
	return meta.Paused, nil
}

// SetPaused toggles the paused flag on the registered token.
func (m *Manager) SetPaused(paused bool) error {
	meta, err := m.Token()
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token not registered")
	}
	meta.Paused = paused
	return m.SetToken(meta)
}

// Account loads the balance record of addr. Unknown accounts yield a zeroed
// record.
func (m *Manager) Account(addr [20]byte) (*types.Account, error) {
	account := new(types.Account)
	if _, err := m.KVGet(accountKey(addr), account); err != nil {
		return nil, err
	}
	return account.Normalize(), nil
}

// PutAccount stores the balance record of addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	record := account.Clone()
	if record.Frozen.Gt(record.Balance) {
		return fmt.Errorf("account %x: frozen amount exceeds balance", addr)
	}
	return m.KVPut(accountKey(addr), record)
}

// Balance retrieves the full balance of addr.
func (m *Manager) Balance(addr [20]byte) (*uint256.Int, error) {
	account, err := m.Account(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// Allowance returns how much spender may move on behalf of owner.
func (m *Manager) Allowance(owner, spender [20]byte) (*uint256.Int, error) {
	amount := new(uint256.Int)
	if _, err := m.KVGet(allowanceKey(owner, spender), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetAllowance overwrites the allowance granted by owner to spender.
func (m *Manager) SetAllowance(owner, spender [20]byte, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return m.KVPut(allowanceKey(owner, spender), amount)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256 to match the requirements of
// the underlying trie implementation.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
