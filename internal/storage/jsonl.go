package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"telxScope/internal/model"
)

// JsonlStorage appends records to a JSONL file. It serves as the log sink of
// the indexer and as a reward sink.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

// NewJsonlStorage creates a JSONL storage appending to path.
func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends log records.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	items := make([]any, 0, len(logs))
	for _, record := range logs {
		items = append(items, record)
	}
	return s.appendLines(items)
}

// SaveEpoch appends one line per wallet reward. The run summary is carried by
// the rows themselves.
func (s *JsonlStorage) SaveEpoch(_ context.Context, _ model.EpochRun, rewards []model.RewardRecord) error {
	items := make([]any, 0, len(rewards))
	for _, row := range rewards {
		items = append(items, row)
	}
	return s.appendLines(items)
}

func (s *JsonlStorage) appendLines(items []any) error {
	if len(items) == 0 {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
