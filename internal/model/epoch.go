package model

import "github.com/holiman/uint256"

// Epoch is a closed block interval with a fixed reward budget in the smallest reward unit.
type Epoch struct {
	PoolID      string
	StartBlock  uint64
	EndBlock    uint64
	TotalReward *uint256.Int
}
