package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telxScope/internal/chain"
	"telxScope/internal/config"
	"telxScope/internal/indexer"
	"telxScope/internal/registry"
	"telxScope/internal/storage"
)

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registryAddr, err := indexer.ParseAddress(cfg.Registry)
	if err != nil {
		return err
	}
	topic0, err := registryTopics(cfg.Topic0, cfg.Topic0Map)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Registry:          registryAddr,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, storage.NewJsonlStorage(cfg.Out), logger)

	logger.Info("index start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("registry", registryAddr.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("index complete",
		zap.Uint64("from", summary.FromBlock),
		zap.Uint64("to", summary.ToBlock),
		zap.Int("batches", summary.Batches),
		zap.Int("logs", summary.Logs),
		zap.Int("removed", summary.Removed),
	)
	return nil
}

// registryTopics returns the explicit topic0 filter, or every event the
// registry decoder knows when none is given.
func registryTopics(explicit []string, topic0Map map[string]string) ([]common.Hash, error) {
	if len(explicit) > 0 {
		return indexer.ParseTopic0(explicit)
	}
	decoder, err := registry.NewDecoder(topic0Map)
	if err != nil {
		return nil, err
	}
	return decoder.Topic0(), nil
}
