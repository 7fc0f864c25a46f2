package registry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"telxScope/internal/classify"
	"telxScope/internal/model"
)

// LogSource rebuilds positions from a JSONL file of raw registry logs.
type LogSource struct {
	path     string
	decoder  *Decoder
	replayer *Replayer
	logger   *zap.Logger
}

// NewLogSource creates a position source replaying the raw log file at path.
func NewLogSource(path string, decoder *Decoder, params classify.Params, logger *zap.Logger) *LogSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSource{
		path:     path,
		decoder:  decoder,
		replayer: NewReplayer(params, logger),
		logger:   logger,
	}
}

// Positions returns positions of poolID as of endBlock.
func (s *LogSource) Positions(ctx context.Context, poolID string, endBlock uint64) ([]model.Position, error) {
	events, err := s.Events(ctx, endBlock)
	if err != nil {
		return nil, err
	}
	all := s.replayer.Replay(events, endBlock)
	out := make([]model.Position, 0, len(all))
	for _, pos := range all {
		if strings.EqualFold(pos.PoolID, poolID) {
			out = append(out, pos)
		}
	}
	return out, nil
}

// Events reads and decodes every registry log at or before endBlock.
// Removed logs and foreign topics are skipped.
func (s *LogSource) Events(ctx context.Context, endBlock uint64) ([]model.RegistryEvent, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open logs: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		events          []model.RegistryEvent
		line            int
		skipped, failed int
	)
	for scanner.Scan() {
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var record model.LogRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if record.Removed || !s.decoder.CanDecode(record.Topic0()) {
			skipped++
			continue
		}
		if endBlock != 0 && record.BlockNumber > endBlock {
			skipped++
			continue
		}

		event, err := s.decoder.Decode(record)
		if err != nil {
			failed++
			s.logger.Warn("decode registry log failed",
				zap.Uint64("block", record.BlockNumber),
				zap.Uint64("log_index", record.LogIndex),
				zap.String("tx", record.TxHash),
				zap.Error(err),
			)
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan logs: %w", err)
	}

	s.logger.Info("registry logs loaded",
		zap.String("path", s.path),
		zap.Int("events", len(events)),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return events, nil
}
