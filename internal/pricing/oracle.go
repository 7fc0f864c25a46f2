package pricing

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"telxScope/internal/fixedpoint"
)

const (
	fullRangeTickLower = -887272
	fullRangeTickUpper = 887272
)

const registryQuoteABIJSON = `[
  {
    "inputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"internalType": "int24", "name": "tickLower", "type": "int24"},
      {"internalType": "int24", "name": "tickUpper", "type": "int24"}
    ],
    "name": "getAmountsForLiquidity",
    "outputs": [
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"},
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	quoteABI     abi.ABI
	quoteABIOnce sync.Once
	quoteABIErr  error
)

func getQuoteABI() (abi.ABI, error) {
	quoteABIOnce.Do(func() {
		quoteABI, quoteABIErr = abi.JSON(strings.NewReader(registryQuoteABIJSON))
	})
	return quoteABI, quoteABIErr
}

// ContractCaller executes eth_call.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RegistryOracle reads the pool price from the PositionRegistry quote function.
// token0 is priced in token1 units; token1 is the common denominator.
type RegistryOracle struct {
	caller   ContractCaller
	registry common.Address
	poolID   common.Hash
}

// NewRegistryOracle creates an oracle reading pool prices from the registry contract.
func NewRegistryOracle(caller ContractCaller, registry common.Address, poolID common.Hash) *RegistryOracle {
	return &RegistryOracle{caller: caller, registry: registry, poolID: poolID}
}

// Prices queries the registry at blockNumber. Zero means latest.
func (o *RegistryOracle) Prices(ctx context.Context, blockNumber uint64) (Prices, error) {
	if o.caller == nil {
		return Prices{}, fmt.Errorf("contract caller is nil")
	}
	sqrtPriceX96, err := o.sqrtPriceX96(ctx, blockNumber)
	if err != nil {
		return Prices{}, err
	}
	if sqrtPriceX96.Sign() == 0 {
		return Prices{}, fmt.Errorf("zero sqrt price: %w", ErrPriceUnavailable)
	}
	return Prices{
		Token0: fixedpoint.SqrtPriceX96ToWad(sqrtPriceX96),
		Token1: new(big.Int).Set(fixedpoint.WAD),
	}, nil
}

func (o *RegistryOracle) sqrtPriceX96(ctx context.Context, blockNumber uint64) (*big.Int, error) {
	parsed, err := getQuoteABI()
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack("getAmountsForLiquidity",
		[32]byte(o.poolID),
		big.NewInt(1),
		big.NewInt(fullRangeTickLower),
		big.NewInt(fullRangeTickUpper),
	)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsForLiquidity: %w", err)
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	msg := ethereum.CallMsg{To: &o.registry, Data: data}
	resp, err := o.caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call getAmountsForLiquidity: %w", err)
	}

	values, err := parsed.Unpack("getAmountsForLiquidity", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsForLiquidity: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("getAmountsForLiquidity return size %d", len(values))
	}
	sqrtPrice, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("sqrtPriceX96 unexpected type %T", values[2])
	}
	return sqrtPrice, nil
}
