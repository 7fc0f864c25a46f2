package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telxScope/internal/live"
	"telxScope/internal/model"
	"telxScope/internal/scoring"
)

func snapshot(wallets ...string) *live.Snapshot {
	res := &scoring.Result{
		Positions: []scoring.PositionScore{
			{PositionID: "1", Classification: model.Passive, Eligible: true},
			{PositionID: "2", Classification: model.Passive},
			{PositionID: "3", Classification: model.JIT},
		},
		TotalScore:       uint256.NewInt(100),
		TotalDistributed: uint256.NewInt(990),
		Undistributed:    uint256.NewInt(10),
		Approximate:      true,
	}
	snap := &live.Snapshot{Result: res, EvaluatedBlock: 1234}
	for _, w := range wallets {
		snap.Wallets = append(snap.Wallets, live.WalletShare{
			WalletReward: scoring.WalletReward{Address: w, Reward: uint256.NewInt(495)},
		})
	}
	return snap
}

func TestObserveSnapshot(t *testing.T) {
	m := NewMetrics("")
	m.ObserveSnapshot(snapshot("0xaaaa", "0xbbbb"), 250*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Evaluations.WithLabelValues("ok")))
	assert.Equal(t, float64(1234), testutil.ToFloat64(m.EvaluatedBlock))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Positions.WithLabelValues("Passive")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Positions.WithLabelValues("Active")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EligiblePositions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Approximate))
	assert.Equal(t, float64(990), testutil.ToFloat64(m.Distributed))
	assert.Equal(t, 2, testutil.CollectAndCount(m.WalletReward))

	m.ObserveSnapshot(snapshot("0xaaaa"), time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.WalletReward))

	m.ObserveFailure(time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Evaluations.WithLabelValues("error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics("telx_test")
	m.LogsIndexed.Add(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "telx_test_indexer_logs_indexed_total 3"))
}
