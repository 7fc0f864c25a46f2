package model

// EpochRun summarizes one evaluation for persistence. Amounts are decimal
// strings of raw reward token units.
type EpochRun struct {
	PoolID            string `json:"pool_id"`
	StartBlock        uint64 `json:"start_block"`
	EndBlock          uint64 `json:"end_block"`
	Mode              string `json:"mode"`
	TotalScore        string `json:"total_score"`
	TotalBudgeted     string `json:"total_budgeted"`
	TotalDistributed  string `json:"total_distributed"`
	Undistributed     string `json:"undistributed"`
	Positions         int    `json:"positions"`
	EligiblePositions int    `json:"eligible_positions"`
	Approximate       bool   `json:"approximate"`
	LowConfidence     int    `json:"low_confidence"`
	ComputedAt        string `json:"computed_at"`
}

// RewardRecord is one wallet's reward for an epoch.
type RewardRecord struct {
	PoolID        string `json:"pool_id"`
	StartBlock    uint64 `json:"start_block"`
	EndBlock      uint64 `json:"end_block"`
	Wallet        string `json:"wallet"`
	Reward        string `json:"reward"`
	RawScore      string `json:"raw_score"`
	WeightedScore string `json:"weighted_score"`
	Positions     int    `json:"positions"`
	Approximate   bool   `json:"approximate"`
	ComputedAt    string `json:"computed_at"`
}

const (
	RunModeFinal = "final"
	RunModeLive  = "live"
	// RunModeApproximate marks an epoch scored without usable prices.
	RunModeApproximate = "approximate"
)

// TokenMeta is the ERC20 metadata of a token, usually the reward token.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
