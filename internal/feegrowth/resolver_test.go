package feegrowth

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"telxScope/internal/model"
)

func checkpoints(blocks []uint64, fees0 []int64) []model.Checkpoint {
	out := make([]model.Checkpoint, 0, len(blocks))
	for i, block := range blocks {
		out = append(out, model.Checkpoint{
			BlockNumber:          block,
			FeeGrowthInside0X128: big.NewInt(fees0[i]),
			FeeGrowthInside1X128: big.NewInt(0),
			Liquidity:            big.NewInt(int64(1000 + i)),
		})
	}
	return out
}

func TestResolveBothCheckpoints(t *testing.T) {
	pos := model.Position{Checkpoints: checkpoints([]uint64{100, 200, 300}, []int64{0, 50, 120})}

	delta := Resolve(pos, 150, 250)
	require.Equal(t, SourceCheckpoints, delta.Source)
	require.Equal(t, ConfidenceHigh, delta.Confidence())
	require.Equal(t, "50", delta.FeeGrowth0.String())
	require.Equal(t, "0", delta.FeeGrowth1.String())
	require.Equal(t, uint64(100), *delta.StartCheckpointBlock)
	require.Equal(t, uint64(200), *delta.EndCheckpointBlock)
	require.Equal(t, "1001", delta.Liquidity.String())
	require.Empty(t, delta.Warnings)
}

func TestResolveOnlyEndCheckpoint(t *testing.T) {
	pos := model.Position{Checkpoints: checkpoints([]uint64{100, 200, 300}, []int64{10, 50, 120})}

	delta := Resolve(pos, 50, 250)
	require.Equal(t, SourceCheckpoints, delta.Source)
	require.Nil(t, delta.StartCheckpointBlock)
	require.Equal(t, "50", delta.FeeGrowth0.String())
}

func TestResolveNegativeDeltaClamps(t *testing.T) {
	pos := model.Position{Checkpoints: checkpoints([]uint64{100, 200}, []int64{80, 50})}

	delta := Resolve(pos, 150, 250)
	require.Equal(t, 0, delta.FeeGrowth0.Sign())
	require.Len(t, delta.Warnings, 1)
}

func TestResolveCheckpointAtBoundaries(t *testing.T) {
	pos := model.Position{Checkpoints: checkpoints([]uint64{100, 200, 300}, []int64{0, 50, 120})}

	delta := Resolve(pos, 100, 300)
	require.Equal(t, "120", delta.FeeGrowth0.String())
}

func TestResolveLiquidityFallsBackToPosition(t *testing.T) {
	cps := checkpoints([]uint64{100}, []int64{5})
	cps[0].Liquidity = nil
	pos := model.Position{Liquidity: big.NewInt(77), Checkpoints: cps}

	delta := Resolve(pos, 100, 200)
	require.Equal(t, "77", delta.Liquidity.String())
}

func TestResolvePeriodFieldFallback(t *testing.T) {
	pos := model.Position{
		Liquidity:              big.NewInt(9),
		FeeGrowthInsidePeriod0: big.NewInt(40),
		FeeGrowthInsidePeriod1: big.NewInt(-3),
	}

	delta := Resolve(pos, 10, 20)
	require.Equal(t, SourcePeriodField, delta.Source)
	require.Equal(t, ConfidenceLow, delta.Confidence())
	require.Equal(t, "40", delta.FeeGrowth0.String())
	require.Equal(t, "0", delta.FeeGrowth1.String())
	require.Equal(t, "9", delta.Liquidity.String())
}

func TestResolveUnavailable(t *testing.T) {
	pos := model.Position{Checkpoints: checkpoints([]uint64{500}, []int64{5})}

	delta := Resolve(pos, 10, 20)
	require.Equal(t, SourceUnavailable, delta.Source)
	require.Equal(t, ConfidenceLow, delta.Confidence())
	require.Equal(t, 0, delta.FeeGrowth0.Sign())
	require.Equal(t, 0, delta.Liquidity.Sign())
}

func TestResolveReordersNonMonotonic(t *testing.T) {
	pos := model.Position{Checkpoints: checkpoints([]uint64{300, 100, 200}, []int64{120, 0, 50})}

	delta := Resolve(pos, 150, 250)
	require.Equal(t, "50", delta.FeeGrowth0.String())
	require.NotEmpty(t, delta.Warnings)
	// The caller's slice is left untouched.
	require.Equal(t, uint64(300), pos.Checkpoints[0].BlockNumber)
}
