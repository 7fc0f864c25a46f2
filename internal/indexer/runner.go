package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"telxScope/internal/retry"
	"telxScope/internal/storage"
)

// LogFetcher is the chain surface the indexer reads from.
type LogFetcher interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the registry log indexer.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Registry          common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Summary reports what a run wrote.
type Summary struct {
	FromBlock uint64
	ToBlock   uint64
	Batches   int
	Logs      int
	Removed   int
}

// Runner pulls PositionRegistry logs batch by batch and appends them to storage.
type Runner struct {
	cfg        RunConfig
	chain      LogFetcher
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner creates a new log indexing runner.
func NewRunner(cfg RunConfig, fetcher LogFetcher, sink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      fetcher,
		storage:    sink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.Registry.Hex(), cfg.CheckpointEnabled),
	}
}

// Run indexes [FromBlock, ToBlock]. A zero ToBlock means the chain head. The
// checkpoint is advanced only after a batch is stored.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	if r.chain == nil {
		return summary, fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return summary, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return summary, ErrZeroBatch
	}
	if r.cfg.Registry == (common.Address{}) {
		return summary, fmt.Errorf("registry address is required")
	}

	var chainID *big.Int
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		chainID, err = r.chain.GetChainID(ctx)
		return err
	})
	if err != nil {
		return summary, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return summary, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	from, to, err := r.resolveRange(ctx)
	if err != nil {
		return summary, err
	}
	summary.FromBlock, summary.ToBlock = from, to
	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return summary, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		written, removed, err := r.indexBatch(ctx, chainID.Uint64(), blockRange)
		if err != nil {
			return summary, err
		}
		summary.Batches++
		summary.Logs += written
		summary.Removed += removed
	}
	return summary, nil
}

func (r *Runner) resolveRange(ctx context.Context) (uint64, uint64, error) {
	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			to, err = r.chain.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return 0, 0, fmt.Errorf("get latest block: %w", err)
		}
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return 0, 0, err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint",
			zap.Uint64("last_processed", cp.LastProcessedBlock),
			zap.Uint64("from", from),
		)
	}
	return from, to, nil
}

func (r *Runner) indexBatch(ctx context.Context, chainID uint64, blockRange BlockRange) (int, int, error) {
	r.logger.Info("fetch registry logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	var logs []types.Log
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, blockRange.From, blockRange.To, []common.Address{r.cfg.Registry}, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("filter logs: %w", err)
	}

	records, removed, err := r.toRecords(ctx, chainID, logs)
	if err != nil {
		return 0, 0, err
	}

	if err := r.storage.PutLogBatch(records); err != nil {
		return 0, 0, fmt.Errorf("store logs: %w", err)
	}
	if err := r.checkpoint.Save(blockRange.To); err != nil {
		return 0, 0, err
	}

	r.logger.Info("batch complete",
		zap.Int("logs", len(records)),
		zap.Int("removed", removed),
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
	)
	return len(records), removed, nil
}
