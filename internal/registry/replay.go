package registry

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"go.uber.org/zap"

	"telxScope/internal/classify"
	"telxScope/internal/model"
)

// Replayer folds ordered registry events into position histories.
type Replayer struct {
	params classify.Params
	logger *zap.Logger
}

// NewReplayer creates a replayer with no positions.
func NewReplayer(params classify.Params, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{params: params, logger: logger}
}

type positionState struct {
	pos      model.Position
	classify classify.State
	updated  bool
}

// Replay sorts events by (block, log index) and rebuilds every position they
// touch. Positions are returned ordered by ID. Events after endBlock are ignored
// unless endBlock is zero.
func (r *Replayer) Replay(events []model.RegistryEvent, endBlock uint64) []model.Position {
	ordered := make([]model.RegistryEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BlockNumber != ordered[j].BlockNumber {
			return ordered[i].BlockNumber < ordered[j].BlockNumber
		}
		return ordered[i].LogIndex < ordered[j].LogIndex
	})

	states := make(map[string]*positionState)
	get := func(ev model.RegistryEvent) *positionState {
		st, ok := states[ev.TokenID]
		if !ok {
			st = &positionState{pos: model.Position{
				ID:             ev.TokenID,
				CreatedAtBlock: ev.BlockNumber,
				Classification: model.Passive,
			}}
			states[ev.TokenID] = st
		}
		return st
	}

	for _, ev := range ordered {
		if endBlock != 0 && ev.BlockNumber > endBlock {
			continue
		}
		switch ev.Name {
		case model.EventPositionUpdated:
			r.applyUpdate(get(ev), ev)
		case model.EventCheckpoint:
			r.applyCheckpoint(get(ev), ev)
		case model.EventSubscribed:
			r.applySubscribe(get(ev), ev)
		case model.EventUnsubscribed:
			r.applyUnsubscribe(get(ev), ev)
		case model.EventRewardsClaimed:
			r.logger.Debug("rewards claimed",
				zap.String("owner", ev.Owner),
				zap.Uint64("block", ev.BlockNumber),
			)
		}
	}

	out := make([]model.Position, 0, len(states))
	for _, st := range states {
		if !st.updated {
			st.pos.Warnings = append(st.pos.Warnings, "no PositionUpdated event observed")
			r.logger.Warn("position without update event", zap.String("position", st.pos.ID))
			if st.pos.PoolID == "" {
				continue
			}
			if st.pos.Liquidity == nil {
				st.pos.Liquidity = new(big.Int)
			}
		}
		out = append(out, st.pos)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

func (r *Replayer) applyUpdate(st *positionState, ev model.RegistryEvent) {
	st.updated = true
	st.pos.PoolID = ev.PoolID
	st.pos.Owner = ev.Owner
	st.pos.TickLower = ev.TickLower
	st.pos.TickUpper = ev.TickUpper
	st.pos.UpdatedAtBlock = ev.BlockNumber

	next, err := r.params.Classify(st.classify, classify.Modification{
		Block:     ev.BlockNumber,
		Liquidity: ev.Liquidity,
	})
	if err != nil {
		st.pos.Malformed = true
		st.pos.Warnings = append(st.pos.Warnings, fmt.Sprintf("PositionUpdated at block %d: %v", ev.BlockNumber, err))
		r.logger.Warn("classification failed",
			zap.String("position", st.pos.ID),
			zap.Uint64("block", ev.BlockNumber),
			zap.Error(err),
		)
		return
	}
	st.classify = next
	st.pos.Liquidity = new(big.Int).Set(next.Liquidity)
	st.pos.ModificationCount = next.ModificationCount
	st.pos.Classification = next.Label
}

func (r *Replayer) applyCheckpoint(st *positionState, ev model.RegistryEvent) {
	if st.pos.PoolID == "" {
		st.pos.PoolID = ev.PoolID
	}
	liquidity := new(big.Int)
	if st.pos.Liquidity != nil {
		liquidity.Set(st.pos.Liquidity)
	}
	st.pos.Checkpoints = append(st.pos.Checkpoints, model.Checkpoint{
		BlockNumber:          ev.BlockNumber,
		Timestamp:            ev.Timestamp,
		FeeGrowthInside0X128: ev.FeeGrowthInside0X128,
		FeeGrowthInside1X128: ev.FeeGrowthInside1X128,
		Liquidity:            liquidity,
	})
	st.pos.UpdatedAtBlock = ev.BlockNumber
}

func (r *Replayer) applySubscribe(st *positionState, ev model.RegistryEvent) {
	wallet := strings.ToLower(ev.Owner)
	if open := openSubscription(st.pos.Subscriptions, wallet); open >= 0 {
		st.pos.Warnings = append(st.pos.Warnings,
			fmt.Sprintf("duplicate subscribe by %s at block %d", wallet, ev.BlockNumber))
		return
	}
	st.pos.Subscriptions = append(st.pos.Subscriptions, model.Subscription{
		Wallet:            wallet,
		SubscribedAtBlock: ev.BlockNumber,
		Active:            true,
	})
}

func (r *Replayer) applyUnsubscribe(st *positionState, ev model.RegistryEvent) {
	wallet := strings.ToLower(ev.Owner)
	open := openSubscription(st.pos.Subscriptions, wallet)
	if open < 0 {
		st.pos.Warnings = append(st.pos.Warnings,
			fmt.Sprintf("unsubscribe without subscription by %s at block %d", wallet, ev.BlockNumber))
		return
	}
	block := ev.BlockNumber
	st.pos.Subscriptions[open].UnsubscribedAtBlock = &block
	st.pos.Subscriptions[open].Active = false
}

func openSubscription(subs []model.Subscription, wallet string) int {
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].Wallet == wallet && subs[i].UnsubscribedAtBlock == nil {
			return i
		}
	}
	return -1
}

// lessID orders decimal token ids numerically and falls back to string order.
func lessID(a, b string) bool {
	ai, aok := new(big.Int).SetString(a, 10)
	bi, bok := new(big.Int).SetString(b, 10)
	if aok && bok {
		return ai.Cmp(bi) < 0
	}
	return a < b
}
