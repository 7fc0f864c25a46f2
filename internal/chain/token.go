package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"telxScope/internal/model"
)

const erc20StringABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// Some older tokens return bytes32 for symbol and name.
const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABIOnce    sync.Once
	erc20StringABI  abi.ABI
	erc20Bytes32ABI abi.ABI
	erc20ABIErr     error
)

func erc20ABIs() (abi.ABI, abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20StringABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20StringABIJSON))
		if erc20ABIErr != nil {
			return
		}
		erc20Bytes32ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20Bytes32ABIJSON))
	})
	return erc20StringABI, erc20Bytes32ABI, erc20ABIErr
}

// Caller executes eth_call.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches ERC20 metadata by address.
type TokenMetaCache struct {
	caller Caller
	logger *zap.Logger

	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

// NewTokenMetaCache creates an empty token metadata cache.
func NewTokenMetaCache(caller Caller, logger *zap.Logger) *TokenMetaCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenMetaCache{caller: caller, logger: logger, data: make(map[common.Address]model.TokenMeta)}
}

// Get returns cached metadata, fetching it on first use. decimals is
// required; symbol and name are best effort.
func (c *TokenMetaCache) Get(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	c.mu.RLock()
	meta, ok := c.data[token]
	c.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := c.fetch(ctx, token)
	if err != nil {
		return meta, err
	}
	c.mu.Lock()
	c.data[token] = meta
	c.mu.Unlock()
	return meta, nil
}

func (c *TokenMetaCache) fetch(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if c.caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	stringABI, bytes32ABI, err := erc20ABIs()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s returned nothing", method)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("unsupported decimals type %T", values[0])
	}
	meta.Decimals = decimals

	text := func(method string) string {
		if values, err := call(method, stringABI); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := call(method, bytes32ABI)
		if err != nil {
			c.logger.Debug("token metadata call failed",
				zap.String("token", token.Hex()),
				zap.String("method", method),
				zap.Error(err),
			)
			return ""
		}
		if raw, ok := values[0].([32]byte); ok {
			return string(bytes.TrimRight(raw[:], "\x00"))
		}
		return ""
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")
	return meta, nil
}
