// Package report renders scoring results as text tables or JSON.
package report

import (
	"math/big"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"telxScope/internal/live"
	"telxScope/internal/model"
	"telxScope/internal/scoring"
)

// Options controls labels and formatting.
type Options struct {
	Mode string
	// CurrentBlock is the chain head read for a live snapshot. Zero for final
	// runs and for snapshots with an explicit end block.
	CurrentBlock  uint64
	TokenSymbol   string
	TokenDecimals uint8
	GeneratedAt   time.Time
}

// Summary is the rendered view of a result.
type Summary struct {
	PoolID       string `json:"pool_id"`
	StartBlock   uint64 `json:"start_block"`
	EndBlock     uint64 `json:"end_block"`
	Mode         string `json:"mode"`
	CurrentBlock uint64 `json:"current_block,omitempty"`
	GeneratedAt  string `json:"generated_at"`
	TokenSymbol  string `json:"token_symbol"`

	TotalPositions int  `json:"total_positions"`
	Passive        int  `json:"passive"`
	Active         int  `json:"active"`
	JIT            int  `json:"jit"`
	Subscribed     int  `json:"subscribed"`
	Eligible       int  `json:"eligible"`
	Excluded       int  `json:"excluded"`
	LowConfidence  int  `json:"low_confidence"`
	Approximate    bool `json:"approximate"`

	TotalScore       string `json:"total_score"`
	TotalBudgeted    string `json:"total_budgeted"`
	TotalDistributed string `json:"total_distributed"`
	Undistributed    string `json:"undistributed"`

	Positions []PositionRow `json:"positions"`
	Wallets   []WalletRow   `json:"wallets"`
}

// PositionRow explains one position's eligibility.
type PositionRow struct {
	ID             string   `json:"id"`
	Owner          string   `json:"owner"`
	Wallet         string   `json:"wallet,omitempty"`
	Classification string   `json:"classification"`
	Subscribed     bool     `json:"subscribed"`
	Eligible       bool     `json:"eligible"`
	Reason         string   `json:"reason"`
	Source         string   `json:"fee_source"`
	Confidence     string   `json:"confidence"`
	Liquidity      string   `json:"liquidity"`
	Fees0          string   `json:"fees0"`
	Fees1          string   `json:"fees1"`
	CommonAmount   string   `json:"common_amount"`
	WeightedScore  string   `json:"weighted_score"`
	Warnings       []string `json:"warnings,omitempty"`
}

// WalletRow is one line of the reward table.
type WalletRow struct {
	Rank          int    `json:"rank"`
	Address       string `json:"address"`
	Positions     int    `json:"positions"`
	RawScore      string `json:"raw_score"`
	WeightedScore string `json:"weighted_score"`
	Reward        string `json:"reward"`
	RewardRaw     string `json:"reward_raw"`
	SharePercent  string `json:"share_percent"`
}

// Build converts a result into a Summary.
func Build(result *scoring.Result, opts Options) Summary {
	generated := opts.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	mode := opts.Mode
	if mode == "" {
		mode = model.RunModeFinal
	}

	s := Summary{
		PoolID:           result.Epoch.PoolID,
		StartBlock:       result.Epoch.StartBlock,
		EndBlock:         result.Epoch.EndBlock,
		Mode:             mode,
		CurrentBlock:     opts.CurrentBlock,
		GeneratedAt:      generated.UTC().Format(time.RFC3339),
		TokenSymbol:      opts.TokenSymbol,
		TotalPositions:   len(result.Positions),
		LowConfidence:    result.LowConfidence,
		Approximate:      result.Approximate,
		TotalScore:       intString(result.TotalScore),
		TotalBudgeted:    FormatAmount(result.TotalBudgeted, opts.TokenDecimals),
		TotalDistributed: FormatAmount(result.TotalDistributed, opts.TokenDecimals),
		Undistributed:    FormatAmount(result.Undistributed, opts.TokenDecimals),
	}

	for _, pos := range result.Positions {
		switch pos.Classification {
		case model.Passive:
			s.Passive++
		case model.Active:
			s.Active++
		case model.JIT:
			s.JIT++
		}
		if pos.Subscribed {
			s.Subscribed++
		}
		if pos.Eligible {
			s.Eligible++
		}
		if pos.Excluded {
			s.Excluded++
		}
		s.Positions = append(s.Positions, PositionRow{
			ID:             pos.PositionID,
			Owner:          pos.Owner,
			Wallet:         pos.Wallet,
			Classification: string(pos.Classification),
			Subscribed:     pos.Subscribed,
			Eligible:       pos.Eligible,
			Reason:         pos.Reason,
			Source:         pos.Source.String(),
			Confidence:     string(pos.Confidence),
			Liquidity:      bigString(pos.Liquidity),
			Fees0:          bigString(pos.Amount.Amount0),
			Fees1:          bigString(pos.Amount.Amount1),
			CommonAmount:   bigString(pos.Amount.Common),
			WeightedScore:  intString(pos.WeightedScore),
			Warnings:       pos.Warnings,
		})
	}

	for i, share := range live.Shares(result.PerWallet, result.TotalDistributed) {
		s.Wallets = append(s.Wallets, WalletRow{
			Rank:          i + 1,
			Address:       share.Address,
			Positions:     share.Positions,
			RawScore:      intString(share.RawScore),
			WeightedScore: intString(share.WeightedScore),
			Reward:        FormatAmount(share.Reward, opts.TokenDecimals),
			RewardRaw:     intString(share.Reward),
			SharePercent:  share.Share.Shift(2).StringFixed(2),
		})
	}
	return s
}

// FormatAmount renders raw token units with decimals fractional digits.
func FormatAmount(value *uint256.Int, decimals uint8) string {
	if value == nil {
		value = new(uint256.Int)
	}
	return decimal.NewFromBigInt(value.ToBig(), -int32(decimals)).StringFixed(int32(decimals))
}

func intString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
