package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Checkpoint records the last block whose registry logs were stored.
type Checkpoint struct {
	Registry           string `json:"registry"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists the indexer checkpoint as a JSON file. A disabled
// store loads nothing and saves nothing.
type CheckpointStore struct {
	path     string
	registry string
	enabled  bool
}

// NewCheckpointStore returns a store for the checkpoint file at path.
func NewCheckpointStore(path, registry string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, registry: strings.ToLower(registry), enabled: enabled && path != ""}
}

// Load returns the stored checkpoint. A checkpoint written for another
// registry is an error.
func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if c == nil || !c.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Registry != "" && c.registry != "" && !strings.EqualFold(cp.Registry, c.registry) {
		return Checkpoint{}, false, fmt.Errorf("checkpoint %s belongs to registry %s", c.path, cp.Registry)
	}
	return cp, true, nil
}

// Save atomically replaces the checkpoint file.
func (c *CheckpointStore) Save(lastProcessed uint64) error {
	if c == nil || !c.enabled {
		return nil
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		Registry:           c.registry,
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
