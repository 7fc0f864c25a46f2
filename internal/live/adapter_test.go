package live

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"telxScope/internal/fixedpoint"
	"telxScope/internal/model"
	"telxScope/internal/scoring"
)

type fixedHeight struct {
	head uint64
	err  error
}

func (f fixedHeight) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, f.err
}

type memorySource struct {
	positions []model.Position
	calls     int
}

func (m *memorySource) Positions(_ context.Context, _ string, endBlock uint64) ([]model.Position, error) {
	m.calls++
	out := make([]model.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		trimmed := pos
		trimmed.Checkpoints = nil
		for _, cp := range pos.Checkpoints {
			if cp.BlockNumber <= endBlock {
				trimmed.Checkpoints = append(trimmed.Checkpoints, cp)
			}
		}
		out = append(out, trimmed)
	}
	return out, nil
}

func position(id, wallet string, fees ...int64) model.Position {
	pos := model.Position{
		ID:             id,
		PoolID:         "0xpool",
		Owner:          wallet,
		Liquidity:      big.NewInt(1),
		Classification: model.Passive,
		Subscriptions:  []model.Subscription{{Wallet: wallet, SubscribedAtBlock: 1, Active: true}},
	}
	for i, fee := range fees {
		pos.Checkpoints = append(pos.Checkpoints, model.Checkpoint{
			BlockNumber:          uint64(100_000 + i*10_000),
			FeeGrowthInside0X128: new(big.Int).Mul(fixedpoint.Q128, big.NewInt(fee)),
			FeeGrowthInside1X128: big.NewInt(0),
			Liquidity:            big.NewInt(1),
		})
	}
	return pos
}

func TestLiveMatchesFinalizedEvaluation(t *testing.T) {
	source := &memorySource{positions: []model.Position{
		position("1", "0xaaa", 0, 10, 30),
		position("2", "0xbbb", 0, 20, 25),
	}}
	evaluator := scoring.NewEvaluator(source, nil, nil, nil)
	adapter := NewAdapter(evaluator, fixedHeight{head: 115_000}, nil)

	req := scoring.Request{PoolID: "0xpool", StartBlock: 100_000, Budget: uint256.NewInt(3000)}
	snapshot, err := adapter.EvaluateLive(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, uint64(115_000), snapshot.CurrentBlock)
	require.Equal(t, uint64(115_000), snapshot.EvaluatedBlock)

	req.EndBlock = 115_000
	final, err := evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, final, snapshot.Result)

	require.Equal(t, uint64(2000), snapshot.Wallets[0].Reward.Uint64())
	require.Equal(t, "0xbbb", snapshot.Wallets[0].Address)
	require.Equal(t, "0.666666666666666667", snapshot.Wallets[0].Share.String())
	require.Equal(t, "0.333333333333333333", snapshot.Wallets[1].Share.String())
}

func TestLiveRecomputesEveryCall(t *testing.T) {
	source := &memorySource{positions: []model.Position{position("1", "0xaaa", 0, 10)}}
	adapter := NewAdapter(scoring.NewEvaluator(source, nil, nil, nil), fixedHeight{head: 120_000}, nil)

	req := scoring.Request{PoolID: "0xpool", StartBlock: 100_000, Budget: uint256.NewInt(10)}
	_, err := adapter.EvaluateLive(context.Background(), req)
	require.NoError(t, err)
	_, err = adapter.EvaluateLive(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestLiveExplicitEnd(t *testing.T) {
	source := &memorySource{positions: []model.Position{position("1", "0xaaa", 0, 10)}}
	adapter := NewAdapter(scoring.NewEvaluator(source, nil, nil, nil), fixedHeight{err: errors.New("unused")}, nil)

	snapshot, err := adapter.EvaluateLive(context.Background(), scoring.Request{
		PoolID: "0xpool", StartBlock: 100_000, EndBlock: 110_000, Budget: uint256.NewInt(10),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(110_000), snapshot.EvaluatedBlock)
	require.Zero(t, snapshot.CurrentBlock)
}

func TestLiveHeightFailure(t *testing.T) {
	adapter := NewAdapter(scoring.NewEvaluator(&memorySource{}, nil, nil, nil), fixedHeight{err: errors.New("rpc down")}, nil)
	snapshot, err := adapter.EvaluateLive(context.Background(), scoring.Request{PoolID: "0xpool", StartBlock: 1})
	require.ErrorIs(t, err, scoring.ErrInputUnavailable)
	require.Nil(t, snapshot)
}

func TestLiveBeforeEpochStart(t *testing.T) {
	adapter := NewAdapter(scoring.NewEvaluator(&memorySource{}, nil, nil, nil), fixedHeight{head: 50}, nil)
	_, err := adapter.EvaluateLive(context.Background(), scoring.Request{PoolID: "0xpool", StartBlock: 100})
	require.ErrorIs(t, err, scoring.ErrInvalidEpoch)
}

func TestSharesZeroDistributed(t *testing.T) {
	rows := []scoring.WalletReward{{Address: "0xa", Reward: uint256.NewInt(0)}}
	shares := Shares(rows, uint256.NewInt(0))
	require.True(t, shares[0].Share.IsZero())
}
