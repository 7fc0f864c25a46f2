package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"telxScope/internal/model"
	"telxScope/internal/retry"
)

// toRecords orders a batch by (block, log index) and converts it to storage
// records. Removed logs are counted and dropped; logs already written by this
// runner are skipped.
func (r *Runner) toRecords(ctx context.Context, chainID uint64, logs []types.Log) ([]model.LogRecord, int, error) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	ingestedAt := time.Now().UTC().Format(time.RFC3339Nano)
	records := make([]model.LogRecord, 0, len(logs))
	removed := 0
	for _, log := range logs {
		if log.Removed {
			removed++
			continue
		}
		record := logRecord(chainID, log)
		if _, ok := r.seen[record.Key()]; ok {
			continue
		}

		err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			ts, err := r.chain.BlockTimestamp(ctx, log.BlockNumber)
			record.Timestamp = ts
			return err
		})
		if err != nil {
			return nil, 0, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		record.IngestedAt = ingestedAt

		r.seen[record.Key()] = struct{}{}
		records = append(records, record)
	}
	return records, removed, nil
}

func logRecord(chainID uint64, log types.Log) model.LogRecord {
	topics := make([]string, len(log.Topics))
	for i, topic := range log.Topics {
		topics[i] = topic.Hex()
	}
	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
	}
}
