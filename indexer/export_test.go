package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"voteledger/core/events"
	"voteledger/core/types"
)

func TestExportParquetWritesLedgerOrder(t *testing.T) {
	idx := setupIndexer(t, Options{})
	alice, bob := types.AccountID{1}, types.AccountID{2}

	for height := uint64(1); height <= 3; height++ {
		idx.Publish(stamp(events.DelegateVotesChanged{
			Delegate: alice,
			Previous: uint256.NewInt(height - 1),
			Current:  uint256.NewInt(height),
		}, height, 0))
		idx.Publish(stamp(events.Transfer{Asset: "vote", From: alice, To: bob, Amount: uint256.NewInt(height)}, height, 1))
	}
	flush(t, idx)

	path := filepath.Join(t.TempDir(), "events.parquet")
	n, err := ExportParquet(context.Background(), idx.db, path, 2)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(4), pr.GetNumRows())
	rows := make([]parquetRow, 4)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(2), rows[0].Height)
	require.Equal(t, events.TypeDelegateVotesChanged, rows[0].Type)
	require.Equal(t, "2", rows[0].Current)
	require.Equal(t, int64(1), rows[1].Sequence)
	require.Equal(t, bob.String(), rows[1].To)
	require.Equal(t, int64(3), rows[3].Height)
	require.Equal(t, "3", rows[3].Amount)
}

func TestExportParquetPagesPastBatchSize(t *testing.T) {
	idx := setupIndexer(t, Options{BatchSize: 64})
	alice := types.AccountID{1}
	total := exportBatchSize + 7
	for i := 0; i < total; i++ {
		idx.Publish(stamp(events.DelegateVotesChanged{
			Delegate: alice,
			Previous: uint256.NewInt(uint64(i)),
			Current:  uint256.NewInt(uint64(i + 1)),
		}, uint64(i/10+1), uint64(i%10)))
	}
	flush(t, idx)

	n, err := ExportParquet(context.Background(), idx.db, filepath.Join(t.TempDir(), "all.parquet"), 0)
	require.NoError(t, err)
	require.Equal(t, total, n)
}
