package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"voteledger/storage"
)

func TestTrieCommitFlushPersistsData(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := NewTrie(db1, nil)
	require.NoError(t, err)

	key := crypto.Keccak256Hash([]byte("key"))
	value := []byte("value")

	require.NoError(t, tr.Update(key.Bytes(), value))
	root, err := tr.Commit(1)
	require.NoError(t, err)
	require.Equal(t, root, tr.Root())

	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := NewTrie(db2, root.Bytes())
	require.NoError(t, err)

	got, err := restored.Get(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestSnapshotRevertDiscardsWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)

	kept := crypto.Keccak256Hash([]byte("kept")).Bytes()
	dropped := crypto.Keccak256Hash([]byte("dropped")).Bytes()

	require.NoError(t, tr.Update(kept, []byte{1}))
	snap := tr.Snapshot()
	before := tr.Hash()

	require.NoError(t, tr.Update(dropped, []byte{2}))
	require.NoError(t, tr.Update(kept, []byte{3}))
	tr.Revert(snap)

	require.Equal(t, before, tr.Hash())
	got, err := tr.Get(kept)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, got)
	got, err = tr.Get(dropped)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCopyIsIsolatedFromWriter(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	key := crypto.Keccak256Hash([]byte("balance")).Bytes()
	require.NoError(t, tr.Update(key, []byte("old")))
	_, err = tr.Commit(1)
	require.NoError(t, err)

	reader := tr.Copy()
	require.NoError(t, tr.Update(key, []byte("new")))

	got, err := reader.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("old"), got)
}
