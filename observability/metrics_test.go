package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetricsRecordOutcomes(t *testing.T) {
	m := Ledger()
	before := testutil.ToFloat64(m.operations.WithLabelValues("mint_test", "error"))
	m.ObserveOperation("mint_test", time.Millisecond, errors.New("boom"))
	m.ObserveOperation("mint_test", time.Millisecond, nil)
	require.Equal(t, before+1, testutil.ToFloat64(m.operations.WithLabelValues("mint_test", "error")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.rollbacks.WithLabelValues("mint_test")))

	m.SetHeight(42)
	require.Equal(t, float64(42), testutil.ToFloat64(m.height))

	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 90)
	m.SetTotalSupply(huge)
	require.InDelta(t, 1.2379400392853803e27, testutil.ToFloat64(m.totalSupply), 1e12)
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	m.Observe("votes", "votes_getVotes_test", 0, time.Millisecond)
	m.Observe("votes", "votes_getVotes_test", -32001, time.Millisecond)
	require.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("votes", "votes_getVotes_test", "success")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("votes", "votes_getVotes_test", "-32001")))
}

func TestEventsMetrics(t *testing.T) {
	m := Events()
	m.RecordEvent(" Votes.Power_Changed ")
	require.Equal(t, float64(1), testutil.ToFloat64(m.emitted.WithLabelValues("votes.power_changed")))
}
