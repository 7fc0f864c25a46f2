package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telxScope/internal/model"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("TELX_PG_TESTS") != "1" {
		t.Skip("set TELX_PG_TESTS=1 to run postgres integration tests")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("telx"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	applyMigrations(t, ctx, store)
	return store
}

func applyMigrations(t *testing.T, ctx context.Context, store *Store) {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "sql", "postgres")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join(dir, file))
		require.NoError(t, err)
		require.NoError(t, store.Exec(ctx, string(sql)), "migration %s", file)
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}

func TestSaveEpochRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	run := model.EpochRun{
		PoolID:            "0xpool",
		StartBlock:        100,
		EndBlock:          200,
		Mode:              model.RunModeFinal,
		TotalScore:        "340282366920938463463374607431768211456",
		TotalBudgeted:     "1000",
		TotalDistributed:  "999",
		Undistributed:     "1",
		Positions:         3,
		EligiblePositions: 2,
		ComputedAt:        "2025-01-02T03:04:05Z",
	}
	rows := []model.RewardRecord{
		{PoolID: "0xpool", StartBlock: 100, EndBlock: 200, Wallet: "0xaaaa", Reward: "333", RawScore: "1", WeightedScore: "1", Positions: 1, ComputedAt: run.ComputedAt},
		{PoolID: "0xpool", StartBlock: 100, EndBlock: 200, Wallet: "0xbbbb", Reward: "666", RawScore: "2", WeightedScore: "2", Positions: 2, ComputedAt: run.ComputedAt},
	}
	require.NoError(t, store.SaveEpoch(ctx, run, rows))

	loaded, ok, err := store.LoadRun(ctx, "0xpool", 100, 200, model.RunModeFinal)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.TotalScore, loaded.TotalScore)
	assert.Equal(t, "1", loaded.Undistributed)

	rewards, err := store.LoadRewards(ctx, "0xpool", 100, 200, model.RunModeFinal)
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.Equal(t, "0xbbbb", rewards[0].Wallet)
	assert.Equal(t, "666", rewards[0].Reward)

	// re-run replaces the table
	require.NoError(t, store.SaveEpoch(ctx, run, rows[:1]))
	rewards, err = store.LoadRewards(ctx, "0xpool", 100, 200, model.RunModeFinal)
	require.NoError(t, err)
	require.Len(t, rewards, 1)

	_, ok, err = store.LoadRun(ctx, "0xpool", 1, 2, model.RunModeFinal)
	require.NoError(t, err)
	assert.False(t, ok)
}
