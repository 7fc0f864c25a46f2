// Package storage persists registry logs and epoch reward tables.
package storage

import (
	"context"

	"telxScope/internal/model"
)

// Storage is a sink for raw registry log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// RewardSink persists a finalized reward table.
type RewardSink interface {
	SaveEpoch(ctx context.Context, run model.EpochRun, rewards []model.RewardRecord) error
}
