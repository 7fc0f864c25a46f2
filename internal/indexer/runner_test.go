package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"telxScope/internal/model"
)

var testRegistry = common.HexToAddress("0x3994e3ae3Cf62bD2a3a83dcE73636E954852BB04")

type fakeFetcher struct {
	head      uint64
	logs      []types.Log
	failFirst int
	calls     [][2]uint64
}

func (f *fakeFetcher) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }

func (f *fakeFetcher) LatestBlockNumber(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeFetcher) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*2, nil
}

func (f *fakeFetcher) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, _ []common.Hash) ([]types.Log, error) {
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("rpc timeout")
	}
	f.calls = append(f.calls, [2]uint64{from, to})
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if len(addresses) != 1 || log.Address != addresses[0] {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

type memoryStorage struct {
	records []model.LogRecord
}

func (m *memoryStorage) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func registryLog(block uint64, index uint) types.Log {
	return types.Log{
		Address:     testRegistry,
		Topics:      []common.Hash{common.HexToHash("0x01")},
		BlockNumber: block,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(block)),
		TxHash:      common.HexToHash("0xbeef"),
		Index:       index,
	}
}

func TestRunnerIndexesBatches(t *testing.T) {
	removed := registryLog(15, 0)
	removed.Removed = true
	fetcher := &fakeFetcher{
		head: 25,
		logs: []types.Log{
			registryLog(12, 1),
			registryLog(12, 0),
			registryLog(12, 0),
			removed,
			registryLog(24, 3),
		},
		failFirst: 1,
	}
	sink := &memoryStorage{}
	cpPath := filepath.Join(t.TempDir(), "cp.json")

	runner := NewRunner(RunConfig{
		FromBlock:         10,
		Registry:          testRegistry,
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
	}, fetcher, sink, nil)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Batches != 2 || summary.Logs != 3 || summary.Removed != 1 {
		t.Fatalf("summary mismatch: %+v", summary)
	}
	if len(sink.records) != 3 {
		t.Fatalf("records: %d", len(sink.records))
	}
	if sink.records[0].LogIndex != 0 || sink.records[1].LogIndex != 1 {
		t.Fatalf("records not ordered: %+v", sink.records[:2])
	}
	if sink.records[0].ChainID != 8453 || sink.records[0].Timestamp != 1_700_000_024 {
		t.Fatalf("record fields: %+v", sink.records[0])
	}

	cp, ok, err := NewCheckpointStore(cpPath, testRegistry.Hex(), true).Load()
	if err != nil || !ok {
		t.Fatalf("checkpoint load: %v %v", ok, err)
	}
	if cp.LastProcessedBlock != 25 {
		t.Fatalf("checkpoint block: %d", cp.LastProcessedBlock)
	}

	again, err := NewRunner(RunConfig{
		FromBlock:         10,
		Registry:          testRegistry,
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}, fetcher, sink, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again.Batches != 0 {
		t.Fatalf("expected resume to skip work, got %+v", again)
	}
}

func TestRunnerValidation(t *testing.T) {
	sink := &memoryStorage{}
	if _, err := NewRunner(RunConfig{BatchSize: 10}, &fakeFetcher{}, sink, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing registry")
	}
	if _, err := NewRunner(RunConfig{Registry: testRegistry}, &fakeFetcher{}, sink, nil).Run(context.Background()); !errors.Is(err, ErrZeroBatch) {
		t.Fatalf("expected zero batch error, got %v", err)
	}
	if _, err := NewRunner(RunConfig{Registry: testRegistry, BatchSize: 1}, nil, sink, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error for nil chain")
	}
}

func TestCheckpointRegistryMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	if err := NewCheckpointStore(path, testRegistry.Hex(), true).Save(99); err != nil {
		t.Fatalf("save: %v", err)
	}
	other := common.HexToAddress("0x1111111111111111111111111111111111111111")
	if _, _, err := NewCheckpointStore(path, other.Hex(), true).Load(); err == nil {
		t.Fatalf("expected registry mismatch error")
	}
	if _, ok, err := NewCheckpointStore(path, other.Hex(), false).Load(); err != nil || ok {
		t.Fatalf("disabled store must load nothing: %v %v", ok, err)
	}
}
