package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"voteledger/core/types"
)

func TestResolveAllocations(t *testing.T) {
	holder := types.AccountID{0x01}
	delegatee := types.AccountID{0x02}
	doc := []byte(`allocations:
  - account: ` + holder.String() + `
    amount: "1000"
    delegate: self
  - account: ` + delegatee.Hex() + `
    amount: "250"
    delegate: ` + holder.String() + `
  - account: 0x0300000000000000000000000000000000000000
    amount: "5"
`)
	spec, err := ParseSpec(doc)
	require.NoError(t, err)
	allocs, err := spec.ResolveAllocations()
	require.NoError(t, err)
	require.Len(t, allocs, 3)
	require.Equal(t, holder, allocs[0].Account)
	require.Equal(t, holder, allocs[0].Delegate)
	require.Equal(t, uint64(1000), allocs[0].Amount.Uint64())
	require.Equal(t, holder, allocs[1].Delegate)
	require.True(t, allocs[2].Delegate.IsNone())
}

func TestParseSpecRejectsUnknownFields(t *testing.T) {
	_, err := ParseSpec([]byte("allocations: []\nvalidators: []\n"))
	require.Error(t, err)
}

func TestResolveAllocationsRejectsBadInput(t *testing.T) {
	holder := types.AccountID{0x01}.Hex()
	cases := map[string]string{
		"duplicate":    "allocations:\n  - {account: " + holder + ", amount: \"1\"}\n  - {account: " + holder + ", amount: \"2\"}\n",
		"bad amount":   "allocations:\n  - {account: " + holder + ", amount: \"-1\"}\n",
		"zero":         "allocations:\n  - {account: \"0x0000000000000000000000000000000000000000\", amount: \"1\"}\n",
		"bad delegate": "allocations:\n  - {account: " + holder + ", amount: \"1\", delegate: nobody}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			spec, err := ParseSpec([]byte(doc))
			require.NoError(t, err)
			_, err = spec.ResolveAllocations()
			require.Error(t, err)
		})
	}
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("allocations: []\n"), 0o644))
	spec, err := LoadSpec(path)
	require.NoError(t, err)
	require.Empty(t, spec.Allocations)

	_, err = LoadSpec("")
	require.Error(t, err)
}
