package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"telxScope/internal/model"
	"telxScope/internal/pricing"
)

// PositionSource returns every position of a pool with checkpoints up to endBlock.
type PositionSource interface {
	Positions(ctx context.Context, poolID string, endBlock uint64) ([]model.Position, error)
}

// Request describes one epoch evaluation.
type Request struct {
	PoolID     string
	StartBlock uint64
	EndBlock   uint64
	Budget     *uint256.Int
	// Prices overrides the price source when usable.
	Prices *pricing.Prices
}

// Evaluator fetches inputs once and runs the engine over them.
type Evaluator struct {
	positions PositionSource
	prices    pricing.Source
	engine    *Engine
	logger    *zap.Logger
}

// NewEvaluator wires an Evaluator. prices may be nil.
func NewEvaluator(positions PositionSource, prices pricing.Source, engine *Engine, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewEngine(DefaultConfig(), logger)
	}
	return &Evaluator{positions: positions, prices: prices, engine: engine, logger: logger}
}

// Evaluate scores a finalized epoch. Any failure to obtain positions is fatal
// and yields no result; price failures only degrade the result to approximate.
func (ev *Evaluator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	if req.StartBlock > req.EndBlock {
		return nil, fmt.Errorf("start %d after end %d: %w", req.StartBlock, req.EndBlock, ErrInvalidEpoch)
	}
	if req.PoolID == "" {
		return nil, fmt.Errorf("pool id is required: %w", ErrInvalidEpoch)
	}
	if ev.positions == nil {
		return nil, fmt.Errorf("position source is nil: %w", ErrInputUnavailable)
	}

	positions, err := ev.positions.Positions(ctx, req.PoolID, req.EndBlock)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w: %w", ErrInputUnavailable, err)
	}
	positions = filterPool(positions, req.PoolID)
	if len(positions) == 0 {
		return nil, fmt.Errorf("pool %s has no positions: %w", req.PoolID, ErrInputUnavailable)
	}

	prices := ev.resolvePrices(ctx, req)

	ev.logger.Info("evaluate epoch",
		zap.String("pool_id", req.PoolID),
		zap.Uint64("start", req.StartBlock),
		zap.Uint64("end", req.EndBlock),
		zap.Int("positions", len(positions)),
		zap.Bool("priced", prices.Usable()),
	)

	return ev.engine.Score(model.Epoch{
		PoolID:      req.PoolID,
		StartBlock:  req.StartBlock,
		EndBlock:    req.EndBlock,
		TotalReward: req.Budget,
	}, positions, prices)
}

func (ev *Evaluator) resolvePrices(ctx context.Context, req Request) *pricing.Prices {
	if req.Prices.Usable() {
		return req.Prices
	}
	if ev.prices == nil {
		return nil
	}
	prices, err := ev.prices.Prices(ctx, req.EndBlock)
	if err != nil {
		ev.logger.Warn("price unavailable, using approximate normalization", zap.Uint64("block", req.EndBlock), zap.Error(err))
		return nil
	}
	if !prices.Usable() {
		ev.logger.Warn("price source returned unusable prices, using approximate normalization", zap.Uint64("block", req.EndBlock))
		return nil
	}
	return &prices
}

func filterPool(positions []model.Position, poolID string) []model.Position {
	out := make([]model.Position, 0, len(positions))
	for _, pos := range positions {
		if pos.PoolID != "" && !strings.EqualFold(pos.PoolID, poolID) {
			continue
		}
		out = append(out, pos)
	}
	return out
}
