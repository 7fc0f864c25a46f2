package scoring

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"telxScope/internal/fixedpoint"
)

// WalletReward is one row of the reward table.
type WalletReward struct {
	Address string
	Reward  *uint256.Int
	// RawScore sums the unweighted common amounts of the wallet's subscribed positions.
	RawScore      *uint256.Int
	WeightedScore *uint256.Int
	Positions     int
}

// Distribution is the outcome of splitting a budget pro-rata.
type Distribution struct {
	Wallets          []WalletReward
	TotalScore       *uint256.Int
	TotalBudgeted    *uint256.Int
	TotalDistributed *uint256.Int
	Undistributed    *uint256.Int
}

// Distribute assigns floor(score * budget / totalScore) to every wallet. The
// floor remainder is reported as undistributed. A zero total score yields zero
// rewards and leaves the whole budget undistributed. Wallets are ordered by reward descending, then address ascending.
func Distribute(wallets []WalletReward, budget *uint256.Int) (Distribution, error) {
	if budget == nil {
		budget = new(uint256.Int)
	}

	total := new(uint256.Int)
	for _, wallet := range wallets {
		if wallet.WeightedScore == nil {
			continue
		}
		sum, err := fixedpoint.Add(total, wallet.WeightedScore)
		if err != nil {
			return Distribution{}, fmt.Errorf("total score: %w", err)
		}
		total = sum
	}

	out := make([]WalletReward, len(wallets))
	distributed := new(uint256.Int)
	for i, wallet := range wallets {
		row := wallet
		if row.WeightedScore == nil {
			row.WeightedScore = new(uint256.Int)
		}
		if row.RawScore == nil {
			row.RawScore = new(uint256.Int)
		}
		row.Reward = new(uint256.Int)
		if !total.IsZero() && !row.WeightedScore.IsZero() {
			reward, err := fixedpoint.MulDiv(row.WeightedScore, budget, total)
			if err != nil {
				return Distribution{}, fmt.Errorf("reward for %s: %w", row.Address, err)
			}
			row.Reward = reward
			distributed.Add(distributed, reward)
		}
		out[i] = row
	}

	sortRewards(out)

	undistributed := new(uint256.Int).Sub(budget, distributed)

	return Distribution{
		Wallets:          out,
		TotalScore:       total,
		TotalBudgeted:    new(uint256.Int).Set(budget),
		TotalDistributed: distributed,
		Undistributed:    undistributed,
	}, nil
}

func sortRewards(rows []WalletReward) {
	sort.SliceStable(rows, func(i, j int) bool {
		if cmp := rows[i].Reward.Cmp(rows[j].Reward); cmp != 0 {
			return cmp > 0
		}
		return rows[i].Address < rows[j].Address
	})
}
