package config

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

// IndexConfig holds settings for `telx index`.
type IndexConfig struct {
	RPCURL            string
	Registry          string
	FromBlock         uint64
	ToBlock           uint64
	Topic0            []string
	Topic0Map         map[string]string
	BatchSize         uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// LoadIndex reads `telx index` settings from flags, env and the config file.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"batch-size":         uint64(2000),
		"out":                "./data/registry_logs.jsonl",
		"checkpoint":         "./data/index_checkpoint.json",
		"checkpoint-enabled": true,
	})
	if err != nil {
		return IndexConfig{}, err
	}

	cfg := IndexConfig{
		RPCURL:            v.GetString("rpc"),
		Registry:          v.GetString("registry"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Topic0:            getStringSlice(v, "topic0"),
		Topic0Map:         getStringMap(v, "topic0-map"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, cfg.Validate()
}

func (c IndexConfig) Validate() error {
	var errs []error
	if c.RPCURL == "" {
		errs = append(errs, errors.New("rpc url is required"))
	}
	if c.Registry == "" {
		errs = append(errs, errors.New("registry address is required"))
	}
	if c.Out == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if c.BatchSize == 0 {
		errs = append(errs, errors.New("batch size must be greater than zero"))
	}
	if c.ToBlock != 0 && c.ToBlock < c.FromBlock {
		errs = append(errs, errors.New("to block must be >= from block"))
	}
	return errors.Join(errs...)
}

// DecodeConfig holds settings for `telx decode`.
type DecodeConfig struct {
	In        string
	Out       string
	Errors    string
	Topic0Map map[string]string
	LogLevel  string
}

// LoadDecode reads `telx decode` settings.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"in":     "./data/registry_logs.jsonl",
		"out":    "./data/registry_events.jsonl",
		"errors": "./data/decode_errors.jsonl",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		Errors:    v.GetString("errors"),
		Topic0Map: getStringMap(v, "topic0-map"),
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.In == "" || cfg.Out == "" || cfg.Errors == "" {
		return cfg, errors.New("in, out and errors paths are required")
	}
	return cfg, nil
}
