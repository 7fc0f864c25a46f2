package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func epochFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("epoch", pflag.ContinueOnError)
	flags.Uint64("start", 0, "")
	flags.Uint64("end", 0, "")
	flags.String("budget", "", "")
	flags.String("source", SourceSubgraph, "")
	flags.String("format", FormatText, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadEpochDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadEpoch("", epochFlags(t, "--start=100", "--end=200", "--budget=1000"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPoolID, cfg.PoolID)
	assert.Equal(t, DefaultRegistry, cfg.Registry)
	assert.Equal(t, SourceSubgraph, cfg.Source)
	assert.Equal(t, uint64(1), cfg.JITThresholdBlocks)
	assert.Equal(t, uint64(43200), cfg.LookbackBlocks)
	assert.True(t, cfg.RequireAgedSubscription)
	assert.Equal(t, uint8(DefaultRewardDecimals), cfg.RewardDecimals)
	assert.Equal(t, uint64(100), cfg.StartBlock)
	assert.Equal(t, uint64(200), cfg.EndBlock)
	assert.Equal(t, "1000", cfg.Budget)
	assert.False(t, cfg.AllowApproximate)
}

func TestLoadEpochEnvOverridesDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELX_LOOKBACK_BLOCKS", "600")
	t.Setenv("TELX_TOPIC0_MAP", "0xaa=PositionUpdated, 0xbb=Checkpoint")

	cfg, err := LoadEpoch("", epochFlags(t, "--end=10", "--budget=5"))
	require.NoError(t, err)
	assert.Equal(t, uint64(600), cfg.LookbackBlocks)
	assert.Equal(t, map[string]string{"0xaa": "PositionUpdated", "0xbb": "Checkpoint"}, cfg.Topic0Map)
}

func TestLoadEpochConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "telx.yaml")
	body := "source: logs\nlogs: ./events.jsonl\nbudget: \"42\"\nend: 900\nsubgraph-timeout: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadEpoch(path, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceLogs, cfg.Source)
	assert.Equal(t, "./events.jsonl", cfg.Logs)
	assert.Equal(t, uint64(900), cfg.EndBlock)
	assert.Equal(t, 5*time.Second, cfg.SubgraphTimeout)
}

func TestLoadEpochAllowApproximateFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELX_ALLOW_APPROXIMATE", "true")

	cfg, err := LoadEpoch("", epochFlags(t, "--end=10", "--budget=5"))
	require.NoError(t, err)
	assert.True(t, cfg.AllowApproximate)
}

func TestLoadEpochValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := LoadEpoch("", epochFlags(t, "--start=300", "--end=200", "--source=ftp", "--format=xml"))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "start block 300 after end block 200")
	assert.Contains(t, msg, `unknown source "ftp"`)
	assert.Contains(t, msg, `unknown format "xml"`)
	assert.Contains(t, msg, "budget is required")
}

func TestLoadLiveAllowsOpenEnd(t *testing.T) {
	t.Chdir(t.TempDir())
	flags := pflag.NewFlagSet("live", pflag.ContinueOnError)
	flags.String("budget", "", "")
	flags.String("metrics-addr", "", "")
	require.NoError(t, flags.Parse([]string{"--budget=10", "--metrics-addr=:9100"}))

	_, err := LoadLive("", flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics require a positive interval")

	t.Setenv("TELX_INTERVAL", "30s")
	cfg, err := LoadLive("", flags)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Zero(t, cfg.EndBlock)
}

func TestLoadIndex(t *testing.T) {
	t.Chdir(t.TempDir())
	flags := pflag.NewFlagSet("index", pflag.ContinueOnError)
	flags.Uint64("from", 0, "")
	flags.Uint64("to", 0, "")
	flags.StringSlice("topic0", nil, "")
	require.NoError(t, flags.Parse([]string{"--from=50", "--to=10", "--topic0=0x01, 0x02"}))

	_, err := LoadIndex("", flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to block must be >= from block")

	require.NoError(t, flags.Set("to", "500"))
	cfg, err := LoadIndex("", flags)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), cfg.BatchSize)
	assert.True(t, cfg.CheckpointEnabled)
	assert.Equal(t, []string{"0x01", "0x02"}, cfg.Topic0)
}

func TestParseStringMapSkipsMalformedPairs(t *testing.T) {
	got := parseStringMap("a=1, b, =2, c= ,d=4")
	assert.Equal(t, map[string]string{"a": "1", "d": "4"}, got)
}

func TestLoadLiveTailRequiresLogsSource(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELX_BUDGET", "10")
	t.Setenv("TELX_TAIL_LOGS", "true")

	_, err := LoadLive("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tail-logs requires the logs source")

	t.Setenv("TELX_SOURCE", "logs")
	cfg, err := LoadLive("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.TailLogs)
	assert.Equal(t, uint64(2000), cfg.BatchSize)
}
