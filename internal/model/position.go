package model

import "math/big"

// Classification labels a position's liquidity-management behavior.
type Classification string

const (
	Passive Classification = "Passive"
	Active  Classification = "Active"
	JIT     Classification = "JIT"
)

// Position is one registry-tracked liquidity NFT within a pool.
type Position struct {
	ID                string
	PoolID            string
	Owner             string
	TickLower         int32
	TickUpper         int32
	Liquidity         *big.Int
	CreatedAtBlock    uint64
	UpdatedAtBlock    uint64
	ModificationCount uint64
	Classification    Classification

	// Period fee growth as reported by the indexer. Nil when not supplied.
	FeeGrowthInsidePeriod0 *big.Int
	FeeGrowthInsidePeriod1 *big.Int

	Subscriptions []Subscription
	Checkpoints   []Checkpoint

	// Warnings collected while the position history was assembled.
	Warnings []string
	// Malformed marks a history that could not be classified.
	Malformed bool
}

// Checkpoint is a cumulative fee growth snapshot taken for a position.
type Checkpoint struct {
	BlockNumber          uint64
	Timestamp            uint64
	FeeGrowthInside0X128 *big.Int
	FeeGrowthInside1X128 *big.Int
	Liquidity            *big.Int
}

// Subscription binds a wallet to a position over [SubscribedAtBlock, UnsubscribedAtBlock).
type Subscription struct {
	Wallet              string
	SubscribedAtBlock   uint64
	UnsubscribedAtBlock *uint64
	Active              bool
}

// Covers reports whether the subscription is in force at block.
func (s Subscription) Covers(block uint64) bool {
	if block < s.SubscribedAtBlock {
		return false
	}
	return s.UnsubscribedAtBlock == nil || block < *s.UnsubscribedAtBlock
}

// Overlaps reports whether the subscription interval intersects [start, end].
func (s Subscription) Overlaps(start, end uint64) bool {
	if s.SubscribedAtBlock > end {
		return false
	}
	return s.UnsubscribedAtBlock == nil || *s.UnsubscribedAtBlock > start
}
