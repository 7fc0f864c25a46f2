package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telxScope/internal/chain"
	"telxScope/internal/classify"
	"telxScope/internal/config"
	"telxScope/internal/model"
	"telxScope/internal/pricing"
	"telxScope/internal/registry"
	"telxScope/internal/report"
	"telxScope/internal/scoring"
	"telxScope/internal/storage"
	"telxScope/internal/storage/postgres"
	"telxScope/internal/subgraph"
)

func runEpoch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEpoch(cfgFile, cmd.Flags())
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

	env, err := newScoringEnv(ctx, cfg.ScoringConfig, false, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	req, err := env.request(cfg.ScoringConfig)
	if err != nil {
		return err
	}

	result, err := env.evaluator.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	mode, err := epochMode(result, cfg.AllowApproximate)
	if err != nil {
		return err
	}

	computedAt := time.Now().UTC()
	if err := writeReport(cfg.ScoringConfig, result, report.Options{
		Mode:          mode,
		TokenSymbol:   env.rewardSymbol,
		TokenDecimals: env.rewardDecimals,
		GeneratedAt:   computedAt,
	}); err != nil {
		return err
	}

	run, rewards := storage.BuildRecords(result, mode, computedAt)
	var sinks []storage.RewardSink
	if cfg.RewardsOut != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.RewardsOut))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store)
	}
	for _, sink := range sinks {
		if err := sink.SaveEpoch(ctx, run, rewards); err != nil {
			return fmt.Errorf("save epoch: %w", err)
		}
	}

	logger.Info("epoch complete",
		zap.String("pool_id", run.PoolID),
		zap.Uint64("start", run.StartBlock),
		zap.Uint64("end", run.EndBlock),
		zap.String("distributed", run.TotalDistributed),
		zap.String("undistributed", run.Undistributed),
		zap.Int("wallets", len(rewards)),
		zap.String("mode", run.Mode),
		zap.Int("sinks", len(sinks)),
	)
	return nil
}

var errApproximateEpoch = errors.New("no usable prices: result is approximate and cannot be a final distribution (use --allow-approximate to keep it as a preview)")

// epochMode returns the run mode an epoch result is reported and stored under.
func epochMode(result *scoring.Result, allowApproximate bool) (string, error) {
	if !result.Approximate {
		return model.RunModeFinal, nil
	}
	if !allowApproximate {
		return "", errApproximateEpoch
	}
	return model.RunModeApproximate, nil
}

// scoringEnv holds the inputs shared by the epoch and live commands.
type scoringEnv struct {
	chain     *chain.Client
	evaluator *scoring.Evaluator

	rewardSymbol   string
	rewardDecimals uint8
}

// newScoringEnv connects to the chain when requireChain is set or the price
// oracle or reward token metadata need it.
func newScoringEnv(ctx context.Context, cfg config.ScoringConfig, requireChain bool, logger *zap.Logger) (*scoringEnv, error) {
	env := &scoringEnv{
		rewardSymbol:   cfg.RewardSymbol,
		rewardDecimals: cfg.RewardDecimals,
	}

	if requireChain || cfg.Oracle || cfg.RewardToken != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		env.chain = client
	}

	params := classify.Params{
		JITThresholdBlocks: cfg.JITThresholdBlocks,
		LookbackBlocks:     cfg.LookbackBlocks,
	}

	var positions scoring.PositionSource
	switch cfg.Source {
	case config.SourceLogs:
		decoder, err := registry.NewDecoder(cfg.Topic0Map)
		if err != nil {
			env.Close()
			return nil, err
		}
		positions = registry.NewLogSource(cfg.Logs, decoder, params, logger)
	default:
		positions = subgraph.NewClient(subgraph.Config{
			URL:          cfg.SubgraphURL,
			Timeout:      cfg.SubgraphTimeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, logger)
	}

	override, err := pricing.ParsePrices(cfg.Token0Price, cfg.Token1Price)
	if err != nil {
		env.Close()
		return nil, err
	}
	var prices pricing.Source
	switch {
	case override != nil:
		prices = pricing.StaticSource{Value: *override}
	case cfg.Oracle:
		prices = pricing.NewRegistryOracle(env.chain, common.HexToAddress(cfg.Registry), common.HexToHash(cfg.PoolID))
	}

	if cfg.RewardToken != "" {
		if !common.IsHexAddress(cfg.RewardToken) {
			env.Close()
			return nil, fmt.Errorf("invalid reward token address: %q", cfg.RewardToken)
		}
		meta, err := chain.NewTokenMetaCache(env.chain, logger).Get(ctx, common.HexToAddress(cfg.RewardToken))
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("reward token metadata: %w", err)
		}
		env.rewardDecimals = meta.Decimals
		if meta.Symbol != "" {
			env.rewardSymbol = meta.Symbol
		}
	}

	engine := scoring.NewEngine(scoring.Config{
		Params:                  params,
		RequireAgedSubscription: cfg.RequireAgedSubscription,
		Workers:                 cfg.Workers,
	}, logger)
	env.evaluator = scoring.NewEvaluator(positions, prices, engine, logger)

	logger.Info("scoring inputs",
		zap.String("source", cfg.Source),
		zap.String("pool_id", cfg.PoolID),
		zap.Bool("static_prices", override != nil),
		zap.Bool("oracle", cfg.Oracle),
		zap.String("reward_symbol", env.rewardSymbol),
		zap.Uint8("reward_decimals", env.rewardDecimals),
	)
	return env, nil
}

func (e *scoringEnv) request(cfg config.ScoringConfig) (scoring.Request, error) {
	budget, err := uint256.FromDecimal(strings.TrimSpace(cfg.Budget))
	if err != nil {
		return scoring.Request{}, fmt.Errorf("invalid budget %q: %w", cfg.Budget, err)
	}
	return scoring.Request{
		PoolID:     cfg.PoolID,
		StartBlock: cfg.StartBlock,
		EndBlock:   cfg.EndBlock,
		Budget:     budget,
	}, nil
}

func (e *scoringEnv) Close() {
	if e != nil && e.chain != nil {
		e.chain.Close()
	}
}

func writeReport(cfg config.ScoringConfig, result *scoring.Result, opts report.Options) (err error) {
	out, err := reportOutput(cfg.Out)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	summary := report.Build(result, opts)
	if cfg.Format == config.FormatJSON {
		return report.WriteJSON(out, summary)
	}
	return report.WriteText(out, summary, cfg.Wallet)
}
