package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"telxScope/internal/config"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "telx",
		Short:        "TELx liquidity reward calculator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index PositionRegistry logs into JSONL",
		RunE:  runIndex,
	}

	indexCmd.Flags().String("rpc", config.DefaultRPCURL, "Base RPC URL")
	indexCmd.Flags().String("registry", config.DefaultRegistry, "PositionRegistry address")
	indexCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	indexCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	indexCmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), defaults to every registry event")
	indexCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	indexCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	indexCmd.Flags().String("out", "./data/registry_logs.jsonl", "output JSONL path")
	indexCmd.Flags().String("checkpoint", "./data/index_checkpoint.json", "checkpoint file path")
	indexCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	indexCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(indexCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode indexed registry logs into events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "./data/registry_logs.jsonl", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/registry_events.jsonl", "output events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	epochCmd := &cobra.Command{
		Use:   "epoch",
		Short: "Compute final rewards for a completed epoch",
		RunE:  runEpoch,
	}

	addScoringFlags(epochCmd)
	epochCmd.Flags().String("rewards-out", "", "append epoch and reward rows to this JSONL file")
	epochCmd.Flags().String("pg-dsn", "", "Postgres DSN for reward persistence")
	epochCmd.Flags().Bool("allow-approximate", false, "accept results scored without prices and store them as approximate, never final")

	root.AddCommand(epochCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Preview provisional rewards for the epoch in progress",
		RunE:  runLive,
	}

	addScoringFlags(liveCmd)
	liveCmd.Flags().Duration("interval", 0, "re-evaluate on this interval, 0 runs once")
	liveCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	liveCmd.Flags().Bool("tail-logs", false, "index new registry logs before each evaluation (logs source only)")
	liveCmd.Flags().String("checkpoint", "./data/index_checkpoint.json", "index checkpoint to resume tailing from")
	liveCmd.Flags().Uint64("batch-size", 2000, "blocks per tail batch")

	root.AddCommand(liveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScoringFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("rpc", config.DefaultRPCURL, "Base RPC URL")
	flags.String("registry", config.DefaultRegistry, "PositionRegistry address")
	flags.String("pool-id", config.DefaultPoolID, "Uniswap v4 pool id")
	flags.Uint64("start", 0, "epoch start block")
	flags.Uint64("end", 0, "epoch end block (live: 0 means chain head)")
	flags.String("budget", "", "epoch reward budget in raw reward token units")

	flags.String("source", config.SourceSubgraph, "position source (subgraph, logs)")
	flags.String("subgraph", config.DefaultSubgraphURL, "subgraph GraphQL endpoint")
	flags.Duration("subgraph-timeout", 30*time.Second, "subgraph request timeout")
	flags.String("logs", "./data/registry_logs.jsonl", "registry logs JSONL for the logs source")
	flags.String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	flags.Uint64("jit-threshold-blocks", 1, "max blocks between the last two modifications for JIT")
	flags.Uint64("lookback-blocks", 43200, "lookback window for Active classification")
	flags.Bool("require-aged-subscription", true, "exclude subscriptions younger than the lookback window")
	flags.Int("workers", 8, "parallel position scoring workers")

	flags.String("token0-price", "", "token0 price in common units (decimal)")
	flags.String("token1-price", "", "token1 price in common units (decimal)")
	flags.Bool("oracle", false, "read prices from the registry quote function")

	flags.String("reward-token", "", "reward token address, read on chain for symbol and decimals")
	flags.Uint("reward-decimals", config.DefaultRewardDecimals, "reward token decimals")
	flags.String("reward-symbol", config.DefaultRewardSymbol, "reward token symbol")

	flags.String("format", config.FormatText, "report format (text, json)")
	flags.String("out", "", "report output path, stdout when empty")
	flags.String("wallet", "", "highlight this wallet in the report")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
