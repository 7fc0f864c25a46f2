// Package live produces provisional reward previews for an epoch in progress.
package live

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"telxScope/internal/scoring"
)

const shareScale = 18

// HeightSource reports the chain head.
type HeightSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// WalletShare pairs a reward row with its share of the distributed total.
type WalletShare struct {
	scoring.WalletReward
	Share decimal.Decimal
}

// Snapshot is a provisional evaluation. It is never cached.
type Snapshot struct {
	Result *scoring.Result
	// EvaluatedBlock is the end block the epoch was scored through.
	EvaluatedBlock uint64
	// CurrentBlock is the chain head read for this snapshot, zero when the
	// request carried its own end block.
	CurrentBlock uint64
	Wallets      []WalletShare
}

// Adapter evaluates an epoch with its end defaulted to the chain head.
type Adapter struct {
	evaluator *scoring.Evaluator
	heights   HeightSource
	logger    *zap.Logger
}

// NewAdapter creates a live adapter. heights may be nil when every request has an end block.
func NewAdapter(evaluator *scoring.Evaluator, heights HeightSource, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{evaluator: evaluator, heights: heights, logger: logger}
}

// EvaluateLive runs a full evaluation from scratch. A zero req.EndBlock is
// replaced by the current head.
func (a *Adapter) EvaluateLive(ctx context.Context, req scoring.Request) (*Snapshot, error) {
	if a.evaluator == nil {
		return nil, fmt.Errorf("evaluator is nil")
	}

	end := req.EndBlock
	var head uint64
	if end == 0 {
		if a.heights == nil {
			return nil, fmt.Errorf("height source is nil: %w", scoring.ErrInputUnavailable)
		}
		var err error
		head, err = a.heights.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("current height: %w: %w", scoring.ErrInputUnavailable, err)
		}
		end = head
	}
	if end < req.StartBlock {
		return nil, fmt.Errorf("epoch starts at %d, head is %d: %w", req.StartBlock, end, scoring.ErrInvalidEpoch)
	}
	req.EndBlock = end

	a.logger.Debug("live snapshot", zap.Uint64("start", req.StartBlock), zap.Uint64("end", end))

	result, err := a.evaluator.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Result:         result,
		EvaluatedBlock: end,
		CurrentBlock:   head,
		Wallets:        Shares(result.PerWallet, result.TotalDistributed),
	}, nil
}

// Shares computes reward / distributed for each row, rounded to 18 places.
func Shares(rows []scoring.WalletReward, distributed *uint256.Int) []WalletShare {
	out := make([]WalletShare, 0, len(rows))
	var total decimal.Decimal
	if distributed != nil && !distributed.IsZero() {
		total = decimal.NewFromBigInt(distributed.ToBig(), 0)
	}
	for _, row := range rows {
		share := decimal.Zero
		if !total.IsZero() && row.Reward != nil {
			share = decimal.NewFromBigInt(row.Reward.ToBig(), 0).DivRound(total, shareScale)
		}
		out = append(out, WalletShare{WalletReward: row, Share: share})
	}
	return out
}
