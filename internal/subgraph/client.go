// Package subgraph reads TELx pool positions from a GraphQL indexer.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"telxScope/internal/model"
	"telxScope/internal/retry"
)

const (
	DefaultURL                = "http://localhost:8000/subgraphs/name/telx-v4-pool"
	DefaultPageSize           = 1000
	DefaultCheckpointPageSize = 1000

	maxResponseBytes = 64 << 20
)

const positionsQuery = `query EpochScoring($poolId: String!, $endBlock: BigInt!, $lastId: String!, $first: Int!, $maxCheckpoints: Int!) {
  positionNFTs(where: {pool: $poolId, id_gt: $lastId}, orderBy: id, orderDirection: asc, first: $first) {
    id
    pool
    owner
    tickLower
    tickUpper
    liquidity
    classification
    modificationCount
    isSubscribed
    createdAtBlock
    updatedAtBlock
    feeGrowthInsidePeriod0
    feeGrowthInsidePeriod1
    checkpoints(where: {blockNumber_lte: $endBlock}, orderBy: blockNumber, orderDirection: asc, first: $maxCheckpoints) {
      id
      blockNumber
      timestamp
      feeGrowthInside0LastX128
      feeGrowthInside1LastX128
      liquidity
    }
    subscriptions(orderBy: subscribedAtBlock, orderDirection: desc) {
      wallet
      subscribedAtBlock
      unsubscribedAtBlock
      isActive
    }
  }
}`

// checkpointsQuery continues a position's checkpoint list past the nested page.
// The cursor block is inclusive; rows already seen are dropped by id.
const checkpointsQuery = `query PositionCheckpoints($positionId: String!, $fromBlock: BigInt!, $endBlock: BigInt!, $first: Int!) {
  feeGrowthCheckpoints(where: {position: $positionId, blockNumber_gte: $fromBlock, blockNumber_lte: $endBlock}, orderBy: blockNumber, orderDirection: asc, first: $first) {
    id
    blockNumber
    timestamp
    feeGrowthInside0LastX128
    feeGrowthInside1LastX128
    liquidity
  }
}`

// Config configures the subgraph client.
type Config struct {
	URL      string
	PageSize int
	// CheckpointPageSize bounds checkpoints per request. A position whose
	// nested list fills the page is completed with follow-up queries.
	CheckpointPageSize int
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
}

// Client queries the indexer. Transport failures are retried here, not in the scorer.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a subgraph client, filling unset fields from the defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.CheckpointPageSize <= 0 {
		cfg.CheckpointPageSize = DefaultCheckpointPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Positions returns every position of poolID with checkpoints at or before endBlock.
func (c *Client) Positions(ctx context.Context, poolID string, endBlock uint64) ([]model.Position, error) {
	poolID = strings.ToLower(poolID)
	var (
		out    []model.Position
		lastID string
	)
	for page := 0; ; page++ {
		body, err := c.fetchPage(ctx, positionsQuery, map[string]any{
			"poolId":         poolID,
			"endBlock":       fmt.Sprintf("%d", endBlock),
			"lastId":         lastID,
			"first":          c.cfg.PageSize,
			"maxCheckpoints": c.cfg.CheckpointPageSize,
		})
		if err != nil {
			return nil, err
		}

		rows, err := envelopeRows(body, "data.positionNFTs")
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			pos, err := parsePosition(row)
			if err != nil {
				return nil, fmt.Errorf("position %s: %w", row.Get("id").String(), err)
			}
			if nested := row.Get("checkpoints").Array(); len(nested) >= c.cfg.CheckpointPageSize {
				more, err := c.remainingCheckpoints(ctx, pos.ID, nested, endBlock)
				if err != nil {
					return nil, fmt.Errorf("position %s checkpoints: %w", pos.ID, err)
				}
				pos.Checkpoints = append(pos.Checkpoints, more...)
			}
			out = append(out, pos)
		}

		c.logger.Debug("subgraph page", zap.Int("page", page), zap.Int("rows", len(rows)))
		if len(rows) < c.cfg.PageSize {
			break
		}
		lastID = rows[len(rows)-1].Get("id").String()
	}

	c.logger.Info("subgraph positions loaded", zap.String("pool_id", poolID), zap.Uint64("end_block", endBlock), zap.Int("positions", len(out)))
	return out, nil
}

// remainingCheckpoints pages a position's checkpoints from the last nested
// block onward until a short page comes back.
func (c *Client) remainingCheckpoints(ctx context.Context, positionID string, nested []gjson.Result, endBlock uint64) ([]model.Checkpoint, error) {
	seen := make(map[string]struct{}, len(nested))
	for _, item := range nested {
		seen[item.Get("id").String()] = struct{}{}
	}
	fromBlock := nested[len(nested)-1].Get("blockNumber").Uint()

	var out []model.Checkpoint
	for {
		body, err := c.fetchPage(ctx, checkpointsQuery, map[string]any{
			"positionId": positionID,
			"fromBlock":  fmt.Sprintf("%d", fromBlock),
			"endBlock":   fmt.Sprintf("%d", endBlock),
			"first":      c.cfg.CheckpointPageSize,
		})
		if err != nil {
			return nil, err
		}
		rows, err := envelopeRows(body, "data.feeGrowthCheckpoints")
		if err != nil {
			return nil, err
		}

		lastBlock := fromBlock
		for _, row := range rows {
			cp, err := parseCheckpoint(row)
			if err != nil {
				return nil, fmt.Errorf("checkpoint: %w", err)
			}
			lastBlock = cp.BlockNumber
			id := row.Get("id").String()
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, cp)
		}

		if len(rows) < c.cfg.CheckpointPageSize {
			return out, nil
		}
		if lastBlock == fromBlock {
			return nil, fmt.Errorf("more than %d checkpoints at block %d", c.cfg.CheckpointPageSize, fromBlock)
		}
		fromBlock = lastBlock
	}
}

func (c *Client) fetchPage(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var body []byte
	err = retry.Do(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		body, err = c.post(ctx, payload)
		if err != nil {
			c.logger.Warn("subgraph request failed", zap.String("url", c.cfg.URL), zap.Error(err))
		}
		return err
	})
	return body, err
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 256)))
	}
	return body, nil
}

func envelopeRows(body []byte, path string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json response: %s", truncate(body, 256))
	}
	if errs := gjson.GetBytes(body, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		messages := make([]string, 0, len(errs.Array()))
		for _, item := range errs.Array() {
			messages = append(messages, item.Get("message").String())
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(messages, "; "))
	}
	data := gjson.GetBytes(body, path)
	if !data.Exists() || !data.IsArray() {
		return nil, fmt.Errorf("response missing %s", path)
	}
	return data.Array(), nil
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
