package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telxScope/internal/config"
	"telxScope/internal/indexer"
	"telxScope/internal/live"
	"telxScope/internal/model"
	"telxScope/internal/observability"
	"telxScope/internal/registry"
	"telxScope/internal/report"
	"telxScope/internal/scoring"
	"telxScope/internal/storage"
)

const metricsNamespace = "telx"

func runLive(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLive(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newScoringEnv(ctx, cfg.ScoringConfig, cfg.EndBlock == 0 || cfg.TailLogs, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	req, err := env.request(cfg.ScoringConfig)
	if err != nil {
		return err
	}

	tail, err := newTailer(cfg, env, logger)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		metrics = observability.NewMetrics(metricsNamespace)
	}

	loop := &liveLoop{
		cfg:     cfg,
		adapter: live.NewAdapter(env.evaluator, env.chain, logger),
		request: req,
		tail:    tail,
		metrics: metrics,
		logger:  logger,
		opts: report.Options{
			Mode:          model.RunModeLive,
			TokenSymbol:   env.rewardSymbol,
			TokenDecimals: env.rewardDecimals,
		},
	}

	if cfg.Interval <= 0 {
		return loop.tick(ctx)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if metrics != nil {
		group.Go(func() error {
			return metrics.Serve(groupCtx, cfg.MetricsAddr, logger)
		})
	}
	group.Go(func() error {
		return loop.run(groupCtx)
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type liveLoop struct {
	cfg     config.LiveConfig
	adapter *live.Adapter
	request scoring.Request
	tail    *indexer.Runner
	metrics *observability.Metrics
	logger  *zap.Logger
	opts    report.Options
}

// run evaluates every interval until ctx is done. Failed evaluations are
// logged and retried on the next tick.
func (l *liveLoop) run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("live evaluation failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *liveLoop) tick(ctx context.Context) error {
	if l.tail != nil {
		summary, err := l.tail.Run(ctx)
		if err != nil {
			return fmt.Errorf("tail registry logs: %w", err)
		}
		if l.metrics != nil {
			l.metrics.LogsIndexed.Add(float64(summary.Logs))
			l.metrics.BatchesIndexed.Add(float64(summary.Batches))
		}
	}

	started := time.Now()
	snap, err := l.adapter.EvaluateLive(ctx, l.request)
	elapsed := time.Since(started)
	if err != nil {
		if l.metrics != nil {
			l.metrics.ObserveFailure(elapsed)
		}
		return err
	}
	if l.metrics != nil {
		l.metrics.ObserveSnapshot(snap, elapsed)
	}

	opts := l.opts
	opts.CurrentBlock = snap.CurrentBlock
	opts.GeneratedAt = time.Now().UTC()
	if err := writeReport(l.cfg.ScoringConfig, snap.Result, opts); err != nil {
		return err
	}

	l.logger.Info("live snapshot",
		zap.Uint64("evaluated_block", snap.EvaluatedBlock),
		zap.Uint64("current_block", snap.CurrentBlock),
		zap.Int("wallets", len(snap.Wallets)),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// newTailer returns nil unless tail-logs is set. Tailing resumes from an
// existing index checkpoint and never starts from genesis.
func newTailer(cfg config.LiveConfig, env *scoringEnv, logger *zap.Logger) (*indexer.Runner, error) {
	if !cfg.TailLogs {
		return nil, nil
	}
	registryAddr, err := indexer.ParseAddress(cfg.Registry)
	if err != nil {
		return nil, err
	}
	_, ok, err := indexer.NewCheckpointStore(cfg.Checkpoint, registryAddr.Hex(), true).Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no index checkpoint at %s, run telx index first", cfg.Checkpoint)
	}
	decoder, err := registry.NewDecoder(cfg.Topic0Map)
	if err != nil {
		return nil, err
	}

	return indexer.NewRunner(indexer.RunConfig{
		Registry:          registryAddr,
		Topic0:            decoder.Topic0(),
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: true,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, env.chain, storage.NewJsonlStorage(cfg.Logs), logger), nil
}
