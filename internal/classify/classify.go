// Package classify labels positions Passive, Active or JIT from their ordered
// liquidity modification history.
package classify

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"telxScope/internal/model"
)

const (
	DefaultJITThresholdBlocks uint64 = 1
	DefaultLookbackBlocks     uint64 = 43200
)

const (
	passiveWeight uint64 = 100
	// WeightScale is the denominator applied to weights.
	WeightScale uint64 = 100
)

var (
	ErrOutOfOrder   = errors.New("event block precedes last recorded block")
	ErrMalformed    = errors.New("malformed modification")
	ErrUnknownLabel = errors.New("unknown classification label")
)

// Params parameterizes the classification machine.
type Params struct {
	JITThresholdBlocks uint64
	LookbackBlocks     uint64
}

// DefaultParams returns the production classification parameters.
func DefaultParams() Params {
	return Params{
		JITThresholdBlocks: DefaultJITThresholdBlocks,
		LookbackBlocks:     DefaultLookbackBlocks,
	}
}

// State is the running value of the fold over one position's history.
type State struct {
	Initialized           bool
	Liquidity             *big.Int
	ModificationCount     uint64
	LastModificationBlock uint64
	LastEventBlock        uint64
	Label                 model.Classification
}

// Modification is one observed liquidity report for a position.
type Modification struct {
	Block     uint64
	Liquidity *big.Int
}

// Classify applies one modification to state and returns the next state.
// The input state is never mutated.
//
// The first event establishes the position as Passive. A report carrying the
// same liquidity is a metadata update and keeps the label. Liquidity added to
// an empty position re-establishes it without counting as a modification.
func (p Params) Classify(state State, mod Modification) (State, error) {
	if mod.Liquidity == nil || mod.Liquidity.Sign() < 0 {
		return state, fmt.Errorf("block %d: %w", mod.Block, ErrMalformed)
	}
	if state.Initialized && mod.Block < state.LastEventBlock {
		return state, fmt.Errorf("block %d after %d: %w", mod.Block, state.LastEventBlock, ErrOutOfOrder)
	}

	next := state
	next.LastEventBlock = mod.Block

	if !state.Initialized {
		next.Initialized = true
		next.Liquidity = new(big.Int).Set(mod.Liquidity)
		next.LastModificationBlock = mod.Block
		next.Label = model.Passive
		return next, nil
	}

	if state.Liquidity.Cmp(mod.Liquidity) == 0 {
		return next, nil
	}

	next.Liquidity = new(big.Int).Set(mod.Liquidity)
	if state.Liquidity.Sign() == 0 {
		next.LastModificationBlock = mod.Block
		return next, nil
	}

	next.ModificationCount++
	next.Label = p.Label(next.ModificationCount, state.LastModificationBlock, mod.Block)
	next.LastModificationBlock = mod.Block
	return next, nil
}

// Fold replays modifications from the zero state.
func (p Params) Fold(history []Modification) (State, error) {
	var state State
	for i, mod := range history {
		next, err := p.Classify(state, mod)
		if err != nil {
			return state, fmt.Errorf("modification %d: %w", i, err)
		}
		state = next
	}
	return state, nil
}

// Label is the transition rule for a liquidity-changing event. modificationCount
// is the count after the event; currentBlock must not precede lastModificationBlock.
func (p Params) Label(modificationCount, lastModificationBlock, currentBlock uint64) model.Classification {
	if modificationCount == 1 {
		return model.Passive
	}

	blockDiff := currentBlock - lastModificationBlock
	if blockDiff <= p.JITThresholdBlocks {
		return model.JIT
	}
	// lookbackStart = currentBlock - LookbackBlocks, floored at zero.
	if currentBlock <= p.LookbackBlocks || lastModificationBlock >= currentBlock-p.LookbackBlocks {
		return model.Active
	}
	return model.Passive
}

// SubscriptionAged reports whether a subscription opened at subscribedAt has
// aged past the lookback window at evalBlock.
func (p Params) SubscriptionAged(subscribedAt, evalBlock uint64) bool {
	if evalBlock < subscribedAt {
		return false
	}
	return evalBlock-subscribedAt >= p.LookbackBlocks
}

// Weight returns the reward weight of a label, out of WeightScale.
func Weight(label model.Classification) (uint64, error) {
	switch label {
	case model.Passive:
		return passiveWeight, nil
	case model.Active, model.JIT:
		return 0, nil
	default:
		return 0, fmt.Errorf("%q: %w", label, ErrUnknownLabel)
	}
}

// ParseLabel normalizes an indexer-supplied label. Empty means Passive.
func ParseLabel(input string) (model.Classification, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "passive":
		return model.Passive, nil
	case "active":
		return model.Active, nil
	case "jit":
		return model.JIT, nil
	default:
		return "", fmt.Errorf("%q: %w", input, ErrUnknownLabel)
	}
}

// Reason describes a label's eligibility for reports.
func Reason(label model.Classification) string {
	switch label {
	case model.Passive:
		return "Passive (100% weight)"
	case model.Active:
		return "Active (0% weight - modified too frequently)"
	case model.JIT:
		return "JIT (0% weight - same block modifications)"
	default:
		return "Unknown classification"
	}
}
