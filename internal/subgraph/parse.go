package subgraph

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/tidwall/gjson"

	"telxScope/internal/classify"
	"telxScope/internal/fixedpoint"
	"telxScope/internal/model"
)

func parsePosition(row gjson.Result) (model.Position, error) {
	pos := model.Position{
		ID:     row.Get("id").String(),
		PoolID: row.Get("pool").String(),
		Owner:  row.Get("owner").String(),
	}
	if pos.ID == "" {
		return pos, fmt.Errorf("missing id")
	}

	var err error
	if pos.TickLower, err = int32Field(row, "tickLower"); err != nil {
		return pos, err
	}
	if pos.TickUpper, err = int32Field(row, "tickUpper"); err != nil {
		return pos, err
	}
	if pos.Liquidity, err = bigField(row, "liquidity"); err != nil {
		return pos, err
	}
	if pos.CreatedAtBlock, err = uintField(row, "createdAtBlock"); err != nil {
		return pos, err
	}
	if pos.UpdatedAtBlock, err = uintField(row, "updatedAtBlock"); err != nil {
		return pos, err
	}
	if pos.ModificationCount, err = uintField(row, "modificationCount"); err != nil {
		return pos, err
	}
	if pos.FeeGrowthInsidePeriod0, err = optionalBigField(row, "feeGrowthInsidePeriod0"); err != nil {
		return pos, err
	}
	if pos.FeeGrowthInsidePeriod1, err = optionalBigField(row, "feeGrowthInsidePeriod1"); err != nil {
		return pos, err
	}

	label, err := classify.ParseLabel(row.Get("classification").String())
	if err != nil {
		pos.Malformed = true
		pos.Warnings = append(pos.Warnings, err.Error())
	}
	pos.Classification = label

	for _, item := range row.Get("checkpoints").Array() {
		cp, err := parseCheckpoint(item)
		if err != nil {
			return pos, fmt.Errorf("checkpoint: %w", err)
		}
		pos.Checkpoints = append(pos.Checkpoints, cp)
	}

	for _, item := range row.Get("subscriptions").Array() {
		sub, err := parseSubscription(item)
		if err != nil {
			return pos, fmt.Errorf("subscription: %w", err)
		}
		pos.Subscriptions = append(pos.Subscriptions, sub)
	}

	return pos, nil
}

func parseCheckpoint(item gjson.Result) (model.Checkpoint, error) {
	var (
		cp  model.Checkpoint
		err error
	)
	if cp.BlockNumber, err = uintField(item, "blockNumber"); err != nil {
		return cp, err
	}
	if cp.Timestamp, err = uintField(item, "timestamp"); err != nil {
		return cp, err
	}
	if cp.FeeGrowthInside0X128, err = bigField(item, "feeGrowthInside0LastX128"); err != nil {
		return cp, err
	}
	if cp.FeeGrowthInside1X128, err = bigField(item, "feeGrowthInside1LastX128"); err != nil {
		return cp, err
	}
	if cp.Liquidity, err = optionalBigField(item, "liquidity"); err != nil {
		return cp, err
	}
	return cp, nil
}

func parseSubscription(item gjson.Result) (model.Subscription, error) {
	sub := model.Subscription{
		Wallet: item.Get("wallet").String(),
		Active: item.Get("isActive").Bool(),
	}
	var err error
	if sub.SubscribedAtBlock, err = uintField(item, "subscribedAtBlock"); err != nil {
		return sub, err
	}
	if unsub := item.Get("unsubscribedAtBlock"); unsub.Exists() && unsub.Type != gjson.Null {
		block, err := strconv.ParseUint(unsub.String(), 10, 64)
		if err != nil {
			return sub, fmt.Errorf("unsubscribedAtBlock: %w", err)
		}
		sub.UnsubscribedAtBlock = &block
	}
	return sub, nil
}

func uintField(row gjson.Result, name string) (uint64, error) {
	field := row.Get(name)
	if !field.Exists() || field.Type == gjson.Null {
		return 0, nil
	}
	value, err := strconv.ParseUint(field.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

func int32Field(row gjson.Result, name string) (int32, error) {
	field := row.Get(name)
	if !field.Exists() || field.Type == gjson.Null {
		return 0, nil
	}
	value, err := strconv.ParseInt(field.String(), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return int32(value), nil
}

func bigField(row gjson.Result, name string) (*big.Int, error) {
	value, err := fixedpoint.ParseSigned(row.Get(name).String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

func optionalBigField(row gjson.Result, name string) (*big.Int, error) {
	field := row.Get(name)
	if !field.Exists() || field.Type == gjson.Null {
		return nil, nil
	}
	return bigField(row, name)
}
