package registry

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const registryEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": false, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"}
    ],
    "name": "PositionUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "checkpointIndex", "type": "uint256"},
      {"indexed": false, "internalType": "int128", "name": "feeGrowthInside0X128", "type": "int128"},
      {"indexed": false, "internalType": "int128", "name": "feeGrowthInside1X128", "type": "int128"}
    ],
    "name": "Checkpoint",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"}
    ],
    "name": "Subscribed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"}
    ],
    "name": "Unsubscribed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "RewardsClaimed",
    "type": "event"
  }
]`

var (
	registryABI     abi.ABI
	registryABIOnce sync.Once
	registryABIErr  error
)

// EventsABI returns the parsed PositionRegistry event ABI.
func EventsABI() (abi.ABI, error) {
	registryABIOnce.Do(func() {
		registryABI, registryABIErr = abi.JSON(strings.NewReader(registryEventsABIJSON))
	})
	return registryABI, registryABIErr
}
