package storage

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	ethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// This allows the ledger to use any database backend (in-memory or persistent).
// TrieDB exposes the node database the state trie commits into; it shares the
// same underlying key-value store as Put/Get.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Close() // A way to gracefully shut down the database connection.
	TrieDB() *triedb.Database
}

// backend couples a raw key-value store with the trie node database layered
// on top of it.
type backend struct {
	disk      ethdb.Database
	trieDB    *triedb.Database
	closeOnce sync.Once
}

func newBackend(kv ethdb.KeyValueStore) *backend {
	disk := rawdb.NewDatabase(kv)
	return &backend{
		disk:   disk,
		trieDB: triedb.NewDatabase(disk, triedb.HashDefaults),
	}
}

func (b *backend) Put(key []byte, value []byte) error {
	return b.disk.Put(key, value)
}

func (b *backend) Get(key []byte) ([]byte, error) {
	ok, err := b.disk.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	value, err := b.disk.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (b *backend) TrieDB() *triedb.Database {
	return b.trieDB
}

func (b *backend) Close() {
	b.closeOnce.Do(func() {
		_ = b.trieDB.Close()
		_ = b.disk.Close()
	})
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	*backend
}

func NewMemDB() *MemDB {
	return &MemDB{backend: newBackend(memorydb.New())}
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	*backend
}

const (
	levelDBCacheMB = 16
	levelDBHandles = 64
)

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := ethleveldb.New(path, levelDBCacheMB, levelDBHandles, "voteledger/db/", false)
	if err != nil {
		return nil, err
	}
	return &LevelDB{backend: newBackend(kv)}, nil
}
