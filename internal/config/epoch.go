package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	SourceSubgraph = "subgraph"
	SourceLogs     = "logs"

	FormatText = "text"
	FormatJSON = "json"
)

// ScoringConfig is shared by `telx epoch` and `telx live`.
type ScoringConfig struct {
	RPCURL   string
	Registry string
	PoolID   string

	Source          string
	SubgraphURL     string
	SubgraphTimeout time.Duration
	Logs            string
	Topic0Map       map[string]string
	MaxRetries      int
	RetryBackoff    time.Duration

	StartBlock uint64
	EndBlock   uint64
	Budget     string

	JITThresholdBlocks      uint64
	LookbackBlocks          uint64
	RequireAgedSubscription bool
	Workers                 int

	Token0Price string
	Token1Price string
	Oracle      bool

	RewardToken    string
	RewardDecimals uint8
	RewardSymbol   string

	Format   string
	Out      string
	Wallet   string
	LogLevel string
}

// EpochConfig holds settings for `telx epoch`.
type EpochConfig struct {
	ScoringConfig
	RewardsOut string
	PGDSN      string

	// AllowApproximate persists price-less results under the approximate mode.
	AllowApproximate bool
}

// LiveConfig holds settings for `telx live`.
type LiveConfig struct {
	ScoringConfig
	Interval    time.Duration
	MetricsAddr string

	// TailLogs indexes new registry logs into Logs before each evaluation.
	TailLogs   bool
	Checkpoint string
	BatchSize  uint64
}

func scoringDefaults() map[string]any {
	return map[string]any{
		"pool-id":                   DefaultPoolID,
		"source":                    SourceSubgraph,
		"subgraph":                  DefaultSubgraphURL,
		"subgraph-timeout":          30 * time.Second,
		"logs":                      "./data/registry_logs.jsonl",
		"jit-threshold-blocks":      uint64(1),
		"lookback-blocks":           uint64(43200),
		"require-aged-subscription": true,
		"workers":                   8,
		"reward-decimals":           DefaultRewardDecimals,
		"reward-symbol":             DefaultRewardSymbol,
		"format":                    FormatText,
	}
}

func readScoring(v *viper.Viper) ScoringConfig {
	return ScoringConfig{
		RPCURL:                  v.GetString("rpc"),
		Registry:                v.GetString("registry"),
		PoolID:                  v.GetString("pool-id"),
		Source:                  v.GetString("source"),
		SubgraphURL:             v.GetString("subgraph"),
		SubgraphTimeout:         v.GetDuration("subgraph-timeout"),
		Logs:                    v.GetString("logs"),
		Topic0Map:               getStringMap(v, "topic0-map"),
		MaxRetries:              v.GetInt("max-retries"),
		RetryBackoff:            v.GetDuration("retry-backoff"),
		StartBlock:              v.GetUint64("start"),
		EndBlock:                v.GetUint64("end"),
		Budget:                  v.GetString("budget"),
		JITThresholdBlocks:      v.GetUint64("jit-threshold-blocks"),
		LookbackBlocks:          v.GetUint64("lookback-blocks"),
		RequireAgedSubscription: v.GetBool("require-aged-subscription"),
		Workers:                 v.GetInt("workers"),
		Token0Price:             v.GetString("token0-price"),
		Token1Price:             v.GetString("token1-price"),
		Oracle:                  v.GetBool("oracle"),
		RewardToken:             v.GetString("reward-token"),
		RewardDecimals:          uint8(v.GetUint("reward-decimals")),
		RewardSymbol:            v.GetString("reward-symbol"),
		Format:                  v.GetString("format"),
		Out:                     v.GetString("out"),
		Wallet:                  v.GetString("wallet"),
		LogLevel:                v.GetString("log-level"),
	}
}

func (c ScoringConfig) validate(requireEnd bool) []error {
	var errs []error
	if c.PoolID == "" {
		errs = append(errs, errors.New("pool id is required"))
	}
	switch c.Source {
	case SourceSubgraph:
		if c.SubgraphURL == "" {
			errs = append(errs, errors.New("subgraph url is required"))
		}
	case SourceLogs:
		if c.Logs == "" {
			errs = append(errs, errors.New("logs path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown format %q", c.Format))
	}
	if requireEnd && c.EndBlock == 0 {
		errs = append(errs, errors.New("end block is required"))
	}
	if c.EndBlock != 0 && c.StartBlock > c.EndBlock {
		errs = append(errs, fmt.Errorf("start block %d after end block %d", c.StartBlock, c.EndBlock))
	}
	if c.Budget == "" {
		errs = append(errs, errors.New("budget is required"))
	}
	if c.Oracle && c.RPCURL == "" {
		errs = append(errs, errors.New("rpc url is required for the price oracle"))
	}
	return errs
}

// LoadEpoch reads and validates `telx epoch` settings.
func LoadEpoch(cfgFile string, flags *pflag.FlagSet) (EpochConfig, error) {
	v, err := load(cfgFile, flags, scoringDefaults())
	if err != nil {
		return EpochConfig{}, err
	}
	cfg := EpochConfig{
		ScoringConfig:    readScoring(v),
		RewardsOut:       v.GetString("rewards-out"),
		PGDSN:            v.GetString("pg-dsn"),
		AllowApproximate: v.GetBool("allow-approximate"),
	}
	return cfg, cfg.Validate()
}

func (c EpochConfig) Validate() error {
	return errors.Join(c.validate(true)...)
}

// LoadLive reads and validates `telx live` settings. The end block may be left open.
func LoadLive(cfgFile string, flags *pflag.FlagSet) (LiveConfig, error) {
	defaults := scoringDefaults()
	defaults["interval"] = time.Duration(0)
	defaults["checkpoint"] = "./data/index_checkpoint.json"
	defaults["batch-size"] = uint64(2000)
	v, err := load(cfgFile, flags, defaults)
	if err != nil {
		return LiveConfig{}, err
	}
	cfg := LiveConfig{
		ScoringConfig: readScoring(v),
		Interval:      v.GetDuration("interval"),
		MetricsAddr:   v.GetString("metrics-addr"),
		TailLogs:      v.GetBool("tail-logs"),
		Checkpoint:    v.GetString("checkpoint"),
		BatchSize:     v.GetUint64("batch-size"),
	}
	return cfg, cfg.Validate()
}

func (c LiveConfig) Validate() error {
	errs := c.validate(false)
	if c.EndBlock == 0 && c.RPCURL == "" {
		errs = append(errs, errors.New("rpc url is required to read the chain head"))
	}
	if c.TailLogs {
		if c.Source != SourceLogs {
			errs = append(errs, errors.New("tail-logs requires the logs source"))
		}
		if c.RPCURL == "" || c.Registry == "" {
			errs = append(errs, errors.New("tail-logs requires rpc and registry"))
		}
		if c.BatchSize == 0 {
			errs = append(errs, errors.New("batch size must be greater than zero"))
		}
	}
	if c.MetricsAddr != "" && c.Interval <= 0 {
		errs = append(errs, errors.New("metrics require a positive interval"))
	}
	return errors.Join(errs...)
}
