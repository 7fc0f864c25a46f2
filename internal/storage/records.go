package storage

import (
	"time"

	"github.com/holiman/uint256"

	"telxScope/internal/model"
	"telxScope/internal/scoring"
)

// BuildRecords flattens a scoring result into persistence rows.
func BuildRecords(result *scoring.Result, mode string, computedAt time.Time) (model.EpochRun, []model.RewardRecord) {
	ts := computedAt.UTC().Format(time.RFC3339Nano)
	eligible := 0
	for _, pos := range result.Positions {
		if pos.Eligible {
			eligible++
		}
	}

	run := model.EpochRun{
		PoolID:            result.Epoch.PoolID,
		StartBlock:        result.Epoch.StartBlock,
		EndBlock:          result.Epoch.EndBlock,
		Mode:              mode,
		TotalScore:        decString(result.TotalScore),
		TotalBudgeted:     decString(result.TotalBudgeted),
		TotalDistributed:  decString(result.TotalDistributed),
		Undistributed:     decString(result.Undistributed),
		Positions:         len(result.Positions),
		EligiblePositions: eligible,
		Approximate:       result.Approximate,
		LowConfidence:     result.LowConfidence,
		ComputedAt:        ts,
	}

	rows := make([]model.RewardRecord, 0, len(result.PerWallet))
	for _, wallet := range result.PerWallet {
		rows = append(rows, model.RewardRecord{
			PoolID:        result.Epoch.PoolID,
			StartBlock:    result.Epoch.StartBlock,
			EndBlock:      result.Epoch.EndBlock,
			Wallet:        wallet.Address,
			Reward:        decString(wallet.Reward),
			RawScore:      decString(wallet.RawScore),
			WeightedScore: decString(wallet.WeightedScore),
			Positions:     wallet.Positions,
			Approximate:   result.Approximate,
			ComputedAt:    ts,
		})
	}
	return run, rows
}

func decString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
