// Package registry decodes PositionRegistry logs and replays them into positions.
package registry

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"telxScope/internal/model"
)

var eventNames = []string{
	model.EventPositionUpdated,
	model.EventCheckpoint,
	model.EventSubscribed,
	model.EventUnsubscribed,
	model.EventRewardsClaimed,
}

// Decoder converts registry LogRecords into RegistryEvents.
type Decoder struct {
	registryABI abi.ABI
	topicToName map[string]string
}

// NewDecoder builds a decoder. topic0Map adds topic0 -> event name aliases for
// deployments whose signatures differ from the bundled ABI.
func NewDecoder(topic0Map map[string]string) (*Decoder, error) {
	parsed, err := EventsABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(eventNames)+len(topic0Map))
	for _, name := range eventNames {
		topicToName[strings.ToLower(parsed.Events[name].ID.Hex())] = name
	}
	for topic0, name := range topic0Map {
		canonical := normalizeEventName(name)
		if canonical == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = canonical
	}

	return &Decoder{registryABI: parsed, topicToName: topicToName}, nil
}

// Topic0 lists every topic0 the decoder accepts, sorted.
func (d *Decoder) Topic0() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a RegistryEvent.
func (d *Decoder) Decode(log model.LogRecord) (model.RegistryEvent, error) {
	if len(log.Topics) == 0 {
		return model.RegistryEvent{}, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return model.RegistryEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	event := model.RegistryEvent{
		Name:        name,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.LogIndex,
		Timestamp:   log.Timestamp,
		TxHash:      log.TxHash,
	}

	var err error
	switch name {
	case model.EventPositionUpdated:
		err = d.decodePositionUpdated(log, &event)
	case model.EventCheckpoint:
		err = d.decodeCheckpoint(log, &event)
	case model.EventSubscribed, model.EventUnsubscribed:
		err = d.decodeSubscription(log, name, &event)
	case model.EventRewardsClaimed:
		err = d.decodeRewardsClaimed(log, &event)
	default:
		err = fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return model.RegistryEvent{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return event, nil
}

func normalizeEventName(name string) string {
	for _, candidate := range eventNames {
		if strings.EqualFold(strings.TrimSpace(name), candidate) {
			return candidate
		}
	}
	return ""
}

func (d *Decoder) decodePositionUpdated(log model.LogRecord, out *model.RegistryEvent) error {
	event := d.registryABI.Events[model.EventPositionUpdated]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		TokenId *big.Int
		PoolId  [32]byte
		Owner   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 3 {
		return fmt.Errorf("unexpected values: %d", len(values))
	}

	tickLower, err := asInt24(values[0])
	if err != nil {
		return err
	}
	tickUpper, err := asInt24(values[1])
	if err != nil {
		return err
	}
	liquidity, err := asBigInt(values[2])
	if err != nil {
		return err
	}

	out.TokenID = indexed.TokenId.String()
	out.PoolID = common.Hash(indexed.PoolId).Hex()
	out.Owner = strings.ToLower(indexed.Owner.Hex())
	out.TickLower = tickLower
	out.TickUpper = tickUpper
	out.Liquidity = liquidity
	return nil
}

func (d *Decoder) decodeCheckpoint(log model.LogRecord, out *model.RegistryEvent) error {
	event := d.registryABI.Events[model.EventCheckpoint]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		TokenId *big.Int
		PoolId  [32]byte
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 3 {
		return fmt.Errorf("unexpected values: %d", len(values))
	}

	index, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	if !index.IsUint64() {
		return fmt.Errorf("checkpoint index overflow: %s", index)
	}
	fee0, err := asBigInt(values[1])
	if err != nil {
		return err
	}
	fee1, err := asBigInt(values[2])
	if err != nil {
		return err
	}

	out.TokenID = indexed.TokenId.String()
	out.PoolID = common.Hash(indexed.PoolId).Hex()
	out.CheckpointIndex = index.Uint64()
	out.FeeGrowthInside0X128 = fee0
	out.FeeGrowthInside1X128 = fee1
	return nil
}

func (d *Decoder) decodeSubscription(log model.LogRecord, name string, out *model.RegistryEvent) error {
	event := d.registryABI.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		TokenId *big.Int
		Owner   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	out.TokenID = indexed.TokenId.String()
	out.Owner = strings.ToLower(indexed.Owner.Hex())
	return nil
}

func (d *Decoder) decodeRewardsClaimed(log model.LogRecord, out *model.RegistryEvent) error {
	event := d.registryABI.Events[model.EventRewardsClaimed]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		Owner common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 1 {
		return fmt.Errorf("unexpected values: %d", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return err
	}

	out.Owner = strings.ToLower(indexed.Owner.Hex())
	out.Amount = amount
	return nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asInt24(value interface{}) (int32, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if v.Cmp(big.NewInt(-1<<23)) < 0 || v.Cmp(big.NewInt((1<<23)-1)) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", v.String())
	}
	return int32(v.Int64()), nil
}
