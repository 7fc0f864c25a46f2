// Package feegrowth extracts the fee growth a position accrued inside an epoch
// from its sparse checkpoint series.
package feegrowth

import (
	"fmt"
	"math/big"
	"sort"

	"telxScope/internal/fixedpoint"
	"telxScope/internal/model"
)

// Source tags where a delta came from.
type Source int

const (
	SourceUnavailable Source = iota
	SourcePeriodField
	SourceCheckpoints
)

func (s Source) String() string {
	switch s {
	case SourceCheckpoints:
		return "checkpoints"
	case SourcePeriodField:
		return "period_field"
	default:
		return "unavailable"
	}
}

// Confidence grades a delta for reporting.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Delta is the per-token fee growth attributed to one epoch.
type Delta struct {
	Source     Source
	FeeGrowth0 *big.Int
	FeeGrowth1 *big.Int
	// Liquidity to convert the growth into token amounts.
	Liquidity *big.Int

	StartCheckpointBlock *uint64
	EndCheckpointBlock   *uint64

	Warnings []string
}

// Confidence is high only when the delta came from checkpoints.
func (d Delta) Confidence() Confidence {
	if d.Source == SourceCheckpoints {
		return ConfidenceHigh
	}
	return ConfidenceLow
}

// Resolve computes the fee growth delta of pos over [startBlock, endBlock].
// Negative deltas are clamped to zero and reported as warnings.
func Resolve(pos model.Position, startBlock, endBlock uint64) Delta {
	var warnings []string
	checkpoints := pos.Checkpoints
	if !monotonic(checkpoints) {
		warnings = append(warnings, "checkpoints not strictly increasing by block; reordered")
		checkpoints = sortedCopy(checkpoints)
	}

	start, hasStart := floorCheckpoint(checkpoints, startBlock)
	end, hasEnd := floorCheckpoint(checkpoints, endBlock)

	if hasEnd {
		delta := Delta{Source: SourceCheckpoints}
		endBlockNumber := end.BlockNumber
		delta.EndCheckpointBlock = &endBlockNumber

		end0 := valueOrZero(end.FeeGrowthInside0X128, &warnings, "end checkpoint token0")
		end1 := valueOrZero(end.FeeGrowthInside1X128, &warnings, "end checkpoint token1")
		if hasStart {
			startBlockNumber := start.BlockNumber
			delta.StartCheckpointBlock = &startBlockNumber
			start0 := valueOrZero(start.FeeGrowthInside0X128, &warnings, "start checkpoint token0")
			start1 := valueOrZero(start.FeeGrowthInside1X128, &warnings, "start checkpoint token1")
			end0 = new(big.Int).Sub(end0, start0)
			end1 = new(big.Int).Sub(end1, start1)
		}
		delta.FeeGrowth0 = clamp(end0, &warnings, "token0")
		delta.FeeGrowth1 = clamp(end1, &warnings, "token1")

		delta.Liquidity = end.Liquidity
		if delta.Liquidity == nil {
			delta.Liquidity = pos.Liquidity
		}
		delta.Liquidity = copyOrZero(delta.Liquidity)
		delta.Warnings = warnings
		return delta
	}

	if pos.FeeGrowthInsidePeriod0 != nil || pos.FeeGrowthInsidePeriod1 != nil {
		return Delta{
			Source:     SourcePeriodField,
			FeeGrowth0: clamp(copyOrZero(pos.FeeGrowthInsidePeriod0), &warnings, "token0"),
			FeeGrowth1: clamp(copyOrZero(pos.FeeGrowthInsidePeriod1), &warnings, "token1"),
			Liquidity:  copyOrZero(pos.Liquidity),
			Warnings:   append(warnings, "no checkpoint at or before epoch end; using period fee growth"),
		}
	}

	return Delta{
		Source:     SourceUnavailable,
		FeeGrowth0: new(big.Int),
		FeeGrowth1: new(big.Int),
		Liquidity:  copyOrZero(pos.Liquidity),
		Warnings:   append(warnings, "no fee growth data for epoch"),
	}
}

// floorCheckpoint returns the checkpoint with the greatest block <= block.
func floorCheckpoint(checkpoints []model.Checkpoint, block uint64) (model.Checkpoint, bool) {
	idx := sort.Search(len(checkpoints), func(i int) bool {
		return checkpoints[i].BlockNumber > block
	}) - 1
	if idx < 0 {
		return model.Checkpoint{}, false
	}
	return checkpoints[idx], true
}

func monotonic(checkpoints []model.Checkpoint) bool {
	for i := 1; i < len(checkpoints); i++ {
		if checkpoints[i].BlockNumber <= checkpoints[i-1].BlockNumber {
			return false
		}
	}
	return true
}

func sortedCopy(checkpoints []model.Checkpoint) []model.Checkpoint {
	out := make([]model.Checkpoint, len(checkpoints))
	copy(out, checkpoints)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BlockNumber < out[j].BlockNumber
	})
	return out
}

func clamp(value *big.Int, warnings *[]string, token string) *big.Int {
	clamped, negative := fixedpoint.ClampNonNegative(value)
	if negative {
		*warnings = append(*warnings, fmt.Sprintf("%s fee growth delta negative (%s); clamped to zero", token, value.String()))
	}
	return clamped
}

func valueOrZero(value *big.Int, warnings *[]string, label string) *big.Int {
	if value == nil {
		*warnings = append(*warnings, label+" fee growth missing; treated as zero")
		return new(big.Int)
	}
	return value
}

func copyOrZero(value *big.Int) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(value)
}
