// Package postgres persists epoch reward tables with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telxScope/internal/model"
)

// Store provides Postgres persistence for epoch runs and rewards.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a pgx pool for dsn and pings it.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Exec runs a statement, used for schema setup.
func (s *Store) Exec(ctx context.Context, sql string) error {
	_, err := s.pool.Exec(ctx, sql)
	return err
}

// SaveEpoch upserts the run and replaces its reward rows in one transaction.
// Re-running an epoch overwrites the previous table.
func (s *Store) SaveEpoch(ctx context.Context, run model.EpochRun, rewards []model.RewardRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO epoch_runs (
			pool_id, start_block, end_block, mode, total_score, total_budgeted,
			total_distributed, undistributed, positions, eligible_positions,
			approximate, low_confidence, computed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5::text::numeric,$6::text::numeric,$7::text::numeric,$8::text::numeric,$9,$10,$11,$12,$13::text::timestamptz,now(),now())
		ON CONFLICT (pool_id, start_block, end_block, mode)
		DO UPDATE SET
			total_score = EXCLUDED.total_score,
			total_budgeted = EXCLUDED.total_budgeted,
			total_distributed = EXCLUDED.total_distributed,
			undistributed = EXCLUDED.undistributed,
			positions = EXCLUDED.positions,
			eligible_positions = EXCLUDED.eligible_positions,
			approximate = EXCLUDED.approximate,
			low_confidence = EXCLUDED.low_confidence,
			computed_at = EXCLUDED.computed_at,
			updated_at = now()
	`,
		run.PoolID,
		int64(run.StartBlock),
		int64(run.EndBlock),
		run.Mode,
		run.TotalScore,
		run.TotalBudgeted,
		run.TotalDistributed,
		run.Undistributed,
		run.Positions,
		run.EligiblePositions,
		run.Approximate,
		run.LowConfidence,
		run.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert epoch run: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM epoch_rewards
		WHERE pool_id = $1 AND start_block = $2 AND end_block = $3 AND mode = $4
	`, run.PoolID, int64(run.StartBlock), int64(run.EndBlock), run.Mode)
	if err != nil {
		return fmt.Errorf("clear rewards: %w", err)
	}

	if len(rewards) > 0 {
		batch := &pgx.Batch{}
		for _, row := range rewards {
			batch.Queue(`
				INSERT INTO epoch_rewards (
					pool_id, start_block, end_block, mode, wallet, reward,
					raw_score, weighted_score, positions, approximate, computed_at
				) VALUES ($1,$2,$3,$4,$5,$6::text::numeric,$7::text::numeric,$8::text::numeric,$9,$10,$11::text::timestamptz)
			`,
				row.PoolID,
				int64(row.StartBlock),
				int64(row.EndBlock),
				run.Mode,
				row.Wallet,
				row.Reward,
				row.RawScore,
				row.WeightedScore,
				row.Positions,
				row.Approximate,
				row.ComputedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range rewards {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert reward: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// LoadRewards returns the stored rewards of an epoch ordered by reward
// descending then wallet.
func (s *Store) LoadRewards(ctx context.Context, poolID string, startBlock, endBlock uint64, mode string) ([]model.RewardRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, start_block, end_block, wallet, reward::text, raw_score::text,
			weighted_score::text, positions, approximate,
			to_char(computed_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM epoch_rewards
		WHERE pool_id = $1 AND start_block = $2 AND end_block = $3 AND mode = $4
		ORDER BY reward DESC, wallet ASC
	`, poolID, int64(startBlock), int64(endBlock), mode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RewardRecord
	for rows.Next() {
		var (
			rec        model.RewardRecord
			start, end int64
		)
		if err := rows.Scan(&rec.PoolID, &start, &end, &rec.Wallet, &rec.Reward, &rec.RawScore,
			&rec.WeightedScore, &rec.Positions, &rec.Approximate, &rec.ComputedAt); err != nil {
			return nil, err
		}
		rec.StartBlock = uint64(start)
		rec.EndBlock = uint64(end)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadRun returns the stored run summary.
func (s *Store) LoadRun(ctx context.Context, poolID string, startBlock, endBlock uint64, mode string) (model.EpochRun, bool, error) {
	var (
		run        model.EpochRun
		start, end int64
	)
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, start_block, end_block, mode, total_score::text, total_budgeted::text,
			total_distributed::text, undistributed::text, positions, eligible_positions,
			approximate, low_confidence
		FROM epoch_runs
		WHERE pool_id = $1 AND start_block = $2 AND end_block = $3 AND mode = $4
	`, poolID, int64(startBlock), int64(endBlock), mode)
	err := row.Scan(&run.PoolID, &start, &end, &run.Mode, &run.TotalScore, &run.TotalBudgeted,
		&run.TotalDistributed, &run.Undistributed, &run.Positions, &run.EligiblePositions,
		&run.Approximate, &run.LowConfidence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EpochRun{}, false, nil
		}
		return model.EpochRun{}, false, err
	}
	run.StartBlock = uint64(start)
	run.EndBlock = uint64(end)
	return run, true, nil
}
