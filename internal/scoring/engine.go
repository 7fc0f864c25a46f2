// Package scoring turns a snapshot of positions into a per-wallet reward table
// for one epoch.
package scoring

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telxScope/internal/classify"
	"telxScope/internal/feegrowth"
	"telxScope/internal/fixedpoint"
	"telxScope/internal/model"
	"telxScope/internal/pricing"
)

var (
	ErrInputUnavailable = errors.New("input unavailable")
	ErrInvalidEpoch     = errors.New("invalid epoch")
)

const (
	reasonNotSubscribed = "Not subscribed during epoch"
	reasonTooYoung      = "Subscription younger than lookback window"
	reasonMalformed     = "Malformed history"
	reasonOverflow      = "Score exceeds 256 bits"
)

// Config controls eligibility.
type Config struct {
	Params classify.Params
	// RequireAgedSubscription applies the subscription-age gate at the epoch end block.
	RequireAgedSubscription bool
	// Workers bounds the per-position fan-out. Zero or less means one per position.
	Workers int
}

// DefaultConfig returns the engine configuration used for epoch scoring.
func DefaultConfig() Config {
	return Config{
		Params:                  classify.DefaultParams(),
		RequireAgedSubscription: true,
		Workers:                 8,
	}
}

// PositionScore is the audit row for one position.
type PositionScore struct {
	PositionID     string
	Owner          string
	Wallet         string
	Classification model.Classification
	Weight         uint64

	Subscribed       bool
	SubscriptionAged bool
	Eligible         bool
	Excluded         bool
	Reason           string

	Source     feegrowth.Source
	Confidence feegrowth.Confidence
	FeeGrowth0 *big.Int
	FeeGrowth1 *big.Int
	Liquidity  *big.Int

	Amount        pricing.Amount
	WeightedScore *uint256.Int
	Warnings      []string
}

// Exclusion records a position left out of aggregation.
type Exclusion struct {
	PositionID string
	Reason     string
}

// Result is the full evaluation output.
type Result struct {
	Epoch     model.Epoch
	PerWallet []WalletReward
	Positions []PositionScore

	TotalScore       *uint256.Int
	TotalBudgeted    *uint256.Int
	TotalDistributed *uint256.Int
	Undistributed    *uint256.Int

	// Approximate is set when no usable prices were supplied.
	Approximate   bool
	LowConfidence int
	Exclusions    []Exclusion
}

// Engine scores positions. It holds no state between calls.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a scoring engine. A nil logger is replaced with a no-op logger.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Score evaluates positions over epoch. positions is read, never modified.
func (e *Engine) Score(epoch model.Epoch, positions []model.Position, prices *pricing.Prices) (*Result, error) {
	if epoch.StartBlock > epoch.EndBlock {
		return nil, fmt.Errorf("start %d after end %d: %w", epoch.StartBlock, epoch.EndBlock, ErrInvalidEpoch)
	}
	budget := epoch.TotalReward
	if budget == nil {
		budget = new(uint256.Int)
	}

	ordered := make([]model.Position, len(positions))
	copy(ordered, positions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return positionLess(ordered[i].ID, ordered[j].ID)
	})

	scores := make([]PositionScore, len(ordered))
	var g errgroup.Group
	if e.cfg.Workers > 0 {
		g.SetLimit(e.cfg.Workers)
	}
	for i := range ordered {
		g.Go(func() error {
			scores[i] = e.scorePosition(epoch, ordered[i], prices)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Epoch:       epoch,
		Positions:   scores,
		Approximate: !prices.Usable(),
	}

	wallets := make(map[string]*WalletReward)
	var walletOrder []string
	for _, score := range scores {
		for _, warning := range score.Warnings {
			e.logger.Warn("position warning", zap.String("position_id", score.PositionID), zap.String("warning", warning))
		}
		if score.Excluded {
			e.logger.Warn("position excluded", zap.String("position_id", score.PositionID), zap.String("reason", score.Reason))
			result.Exclusions = append(result.Exclusions, Exclusion{PositionID: score.PositionID, Reason: score.Reason})
			continue
		}
		if score.Subscribed && score.Confidence == feegrowth.ConfidenceLow {
			result.LowConfidence++
		}
		if !score.Subscribed {
			continue
		}

		wallet, ok := wallets[score.Wallet]
		if !ok {
			wallet = &WalletReward{
				Address:       score.Wallet,
				RawScore:      new(uint256.Int),
				WeightedScore: new(uint256.Int),
			}
			wallets[score.Wallet] = wallet
			walletOrder = append(walletOrder, score.Wallet)
		}
		wallet.Positions++

		raw, err := fixedpoint.ToU256(score.Amount.Common)
		if err != nil {
			return nil, fmt.Errorf("position %s raw score: %w", score.PositionID, err)
		}
		if wallet.RawScore, err = fixedpoint.Add(wallet.RawScore, raw); err != nil {
			return nil, fmt.Errorf("wallet %s raw score: %w", score.Wallet, err)
		}
		if score.Eligible {
			if wallet.WeightedScore, err = fixedpoint.Add(wallet.WeightedScore, score.WeightedScore); err != nil {
				return nil, fmt.Errorf("wallet %s weighted score: %w", score.Wallet, err)
			}
		}
	}

	rows := make([]WalletReward, 0, len(walletOrder))
	for _, address := range walletOrder {
		rows = append(rows, *wallets[address])
	}

	distribution, err := Distribute(rows, budget)
	if err != nil {
		return nil, err
	}
	result.PerWallet = distribution.Wallets
	result.TotalScore = distribution.TotalScore
	result.TotalBudgeted = distribution.TotalBudgeted
	result.TotalDistributed = distribution.TotalDistributed
	result.Undistributed = distribution.Undistributed

	return result, nil
}

func (e *Engine) scorePosition(epoch model.Epoch, pos model.Position, prices *pricing.Prices) PositionScore {
	score := PositionScore{
		PositionID:     pos.ID,
		Owner:          strings.ToLower(pos.Owner),
		Classification: pos.Classification,
		WeightedScore:  new(uint256.Int),
		Warnings:       append([]string(nil), pos.Warnings...),
	}
	if score.Classification == "" {
		score.Classification = model.Passive
	}

	sub, subscribed := bindSubscription(pos.Subscriptions, epoch.StartBlock, epoch.EndBlock)
	score.Subscribed = subscribed
	score.Wallet = score.Owner
	if subscribed && sub.Wallet != "" {
		score.Wallet = strings.ToLower(sub.Wallet)
	}

	delta := feegrowth.Resolve(pos, epoch.StartBlock, epoch.EndBlock)
	score.Source = delta.Source
	score.Confidence = delta.Confidence()
	score.FeeGrowth0 = delta.FeeGrowth0
	score.FeeGrowth1 = delta.FeeGrowth1
	score.Liquidity = delta.Liquidity
	score.Warnings = append(score.Warnings, delta.Warnings...)
	score.Amount = pricing.Normalize(delta.FeeGrowth0, delta.FeeGrowth1, delta.Liquidity, prices)

	if pos.Malformed {
		score.Excluded = true
		score.Reason = reasonMalformed
		return score
	}

	weight, err := classify.Weight(score.Classification)
	if err != nil {
		score.Excluded = true
		score.Reason = err.Error()
		return score
	}
	score.Weight = weight

	common, err := fixedpoint.ToU256(score.Amount.Common)
	if err != nil {
		score.Excluded = true
		score.Reason = reasonOverflow
		return score
	}
	weighted, err := fixedpoint.MulDiv(common, uint256.NewInt(weight), uint256.NewInt(classify.WeightScale))
	if err != nil {
		score.Excluded = true
		score.Reason = reasonOverflow
		return score
	}

	score.SubscriptionAged = subscribed &&
		(!e.cfg.RequireAgedSubscription || e.cfg.Params.SubscriptionAged(sub.SubscribedAtBlock, epoch.EndBlock))

	switch {
	case !subscribed:
		score.Reason = reasonNotSubscribed
	case weight == 0:
		score.Reason = classify.Reason(score.Classification)
	case !score.SubscriptionAged:
		score.Reason = reasonTooYoung
	default:
		score.Eligible = true
		score.Reason = classify.Reason(score.Classification)
		score.WeightedScore = weighted
	}
	return score
}

// bindSubscription picks the subscription the epoch is attributed to: the one in
// force at the end block, else the most recent one overlapping the epoch.
func bindSubscription(subs []model.Subscription, start, end uint64) (model.Subscription, bool) {
	var (
		best  model.Subscription
		found bool
	)
	for _, sub := range subs {
		if !sub.Overlaps(start, end) {
			continue
		}
		if sub.Covers(end) {
			return sub, true
		}
		if !found || sub.SubscribedAtBlock > best.SubscribedAtBlock {
			best = sub
			found = true
		}
	}
	return best, found
}

// positionLess orders numeric token ids numerically and everything else lexically.
func positionLess(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
