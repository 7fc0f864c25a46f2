package model

import "math/big"

// Registry event names.
const (
	EventPositionUpdated = "PositionUpdated"
	EventCheckpoint      = "Checkpoint"
	EventSubscribed      = "Subscribed"
	EventUnsubscribed    = "Unsubscribed"
	EventRewardsClaimed  = "RewardsClaimed"
)

// RegistryEvent is a decoded PositionRegistry log.
type RegistryEvent struct {
	Name        string `json:"event"`
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	Timestamp   uint64 `json:"timestamp"`
	TxHash      string `json:"tx_hash"`

	TokenID string `json:"token_id,omitempty"`
	PoolID  string `json:"pool_id,omitempty"`
	Owner   string `json:"owner,omitempty"`

	TickLower int32    `json:"tick_lower,omitempty"`
	TickUpper int32    `json:"tick_upper,omitempty"`
	Liquidity *big.Int `json:"liquidity,omitempty"`

	CheckpointIndex      uint64   `json:"checkpoint_index,omitempty"`
	FeeGrowthInside0X128 *big.Int `json:"fee_growth_inside0_x128,omitempty"`
	FeeGrowthInside1X128 *big.Int `json:"fee_growth_inside1_x128,omitempty"`

	Amount *big.Int `json:"amount,omitempty"`
}

// DecodeFailure records a registry log that could not be decoded.
type DecodeFailure struct {
	Line        int    `json:"line,omitempty"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}

// NewDecodeFailure describes why record could not be decoded.
func NewDecodeFailure(record LogRecord, err error) DecodeFailure {
	return DecodeFailure{
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}
