package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"voteledger/core/events"
	"voteledger/core/types"
)

func setupIndexer(t *testing.T, opts Options) *Indexer {
	t.Helper()
	db, err := OpenDB(DriverSQLite, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	idx := New(db, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = idx.Close(ctx)
	})
	return idx
}

func stamp(evt events.Event, height, seq uint64) *types.Event {
	out := evt.Event()
	out.Height = height
	out.Sequence = seq
	return out
}

func flush(t *testing.T, idx *Indexer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, idx.Close(ctx))
}

func TestVotesHistoryOrdersByPosition(t *testing.T) {
	idx := setupIndexer(t, Options{})
	alice := types.AccountID{1}
	bob := types.AccountID{2}

	idx.Publish(stamp(events.DelegateeChanged{Delegator: alice, To: alice}, 3, 0))
	idx.Publish(stamp(events.DelegateVotesChanged{Delegate: alice, Previous: uint256.NewInt(0), Current: uint256.NewInt(1000)}, 3, 1))
	idx.Publish(stamp(events.DelegateVotesChanged{Delegate: alice, Previous: uint256.NewInt(1000), Current: uint256.NewInt(900)}, 4, 0))
	idx.Publish(stamp(events.Transfer{Asset: "vote", From: alice, To: bob, Amount: uint256.NewInt(100)}, 4, 1))
	idx.Publish(stamp(events.DelegateVotesChanged{Delegate: bob, Previous: uint256.NewInt(0), Current: uint256.NewInt(100)}, 5, 0))
	flush(t, idx)

	history, err := idx.VotesHistory(context.Background(), alice, Query{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, uint64(3), history[0].Height)
	require.Equal(t, "1000", history[0].Current)
	require.Equal(t, "900", history[1].Current)
	require.Equal(t, alice.String(), history[1].Delegate)

	later, err := idx.VotesHistory(context.Background(), alice, Query{FromHeight: 4})
	require.NoError(t, err)
	require.Len(t, later, 1)

	delegations, err := idx.DelegationHistory(context.Background(), alice, Query{})
	require.NoError(t, err)
	require.Len(t, delegations, 1)
	require.Equal(t, alice.String(), delegations[0].To)
	require.Equal(t, "", delegations[0].From)

	transfers, err := idx.Transfers(context.Background(), bob, Query{})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	require.Equal(t, "100", transfers[0].Amount)
}

func TestPublishSkipsUnindexedTypes(t *testing.T) {
	idx := setupIndexer(t, Options{})
	idx.Publish(stamp(events.TokenPaused{Paused: true}, 1, 0))
	idx.Publish(nil)
	flush(t, idx)

	var count int64
	require.NoError(t, idx.db.Model(&EventRecord{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPublishAfterCloseIsIgnored(t *testing.T) {
	idx := setupIndexer(t, Options{QueueSize: 1})
	flush(t, idx)
	require.NotPanics(t, func() {
		idx.Publish(stamp(events.DelegateeChanged{Delegator: types.AccountID{9}}, 1, 0))
	})
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	_, err := OpenDB("mysql", "dsn")
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestQueryLimitBounds(t *testing.T) {
	require.Equal(t, defaultLimit, Query{}.limit())
	require.Equal(t, maxLimit, Query{Limit: maxLimit + 1}.limit())
	require.Equal(t, 7, Query{Limit: 7}.limit())
}
