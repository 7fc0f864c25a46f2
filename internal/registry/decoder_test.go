package registry

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"telxScope/internal/model"
)

var (
	testRegistry = common.HexToAddress("0x2c33fD2Bd34C4B5c8a1e1a1d0A0A0a0A0a0a0A0A")
	testPool     = common.HexToHash("0x727b2741ac2b2df8bc9185e1de972661519fc07b156057eeed9b07c50e08829b")
	testOwner    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestDecodePositionUpdated(t *testing.T) {
	decoder := mustDecoder(t)
	record := positionUpdatedLog(t, 42, testOwner, -887220, 887220, big.NewInt(5000), 100, 3)

	event, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Name != model.EventPositionUpdated {
		t.Fatalf("name mismatch: %s", event.Name)
	}
	if event.TokenID != "42" || event.PoolID != testPool.Hex() {
		t.Fatalf("ids mismatch: %+v", event)
	}
	if event.Owner != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("owner mismatch: %s", event.Owner)
	}
	if event.TickLower != -887220 || event.TickUpper != 887220 {
		t.Fatalf("ticks mismatch: %d %d", event.TickLower, event.TickUpper)
	}
	if event.Liquidity.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("liquidity mismatch: %s", event.Liquidity)
	}
	if event.BlockNumber != 100 || event.LogIndex != 3 {
		t.Fatalf("position mismatch: %d/%d", event.BlockNumber, event.LogIndex)
	}
}

func TestDecodeCheckpointSigned(t *testing.T) {
	decoder := mustDecoder(t)
	record := checkpointLog(t, 7, 2, big.NewInt(-5), new(big.Int).Lsh(big.NewInt(1), 100), 200, 0)

	event, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.CheckpointIndex != 2 {
		t.Fatalf("index mismatch: %d", event.CheckpointIndex)
	}
	if event.FeeGrowthInside0X128.Cmp(big.NewInt(-5)) != 0 {
		t.Fatalf("fee0 mismatch: %s", event.FeeGrowthInside0X128)
	}
	if event.FeeGrowthInside1X128.Cmp(new(big.Int).Lsh(big.NewInt(1), 100)) != 0 {
		t.Fatalf("fee1 mismatch: %s", event.FeeGrowthInside1X128)
	}
}

func TestDecodeSubscriptionEvents(t *testing.T) {
	decoder := mustDecoder(t)

	sub, err := decoder.Decode(subscriptionLog(t, model.EventSubscribed, 9, testOwner, 300, 0))
	if err != nil {
		t.Fatalf("decode subscribed: %v", err)
	}
	if sub.Name != model.EventSubscribed || sub.TokenID != "9" {
		t.Fatalf("subscribed mismatch: %+v", sub)
	}

	unsub, err := decoder.Decode(subscriptionLog(t, model.EventUnsubscribed, 9, testOwner, 301, 0))
	if err != nil {
		t.Fatalf("decode unsubscribed: %v", err)
	}
	if unsub.Name != model.EventUnsubscribed || unsub.Owner != sub.Owner {
		t.Fatalf("unsubscribed mismatch: %+v", unsub)
	}
}

func TestDecodeRewardsClaimed(t *testing.T) {
	decoder := mustDecoder(t)
	parsed := mustABI(t)
	event := parsed.Events[model.EventRewardsClaimed]

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1234))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	record := buildLogRecord(event.ID, data, []common.Hash{common.BytesToHash(testOwner.Bytes())}, 400, 0)

	decoded, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Amount.Cmp(big.NewInt(1234)) != 0 {
		t.Fatalf("amount mismatch: %s", decoded.Amount)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	decoder := mustDecoder(t)

	if _, err := decoder.Decode(model.LogRecord{}); err == nil {
		t.Fatalf("expected error for missing topics")
	}

	unknown := model.LogRecord{Topics: []string{common.HexToHash("0x01").Hex()}, Data: "0x"}
	if decoder.CanDecode(unknown.Topics[0]) {
		t.Fatalf("unexpected topic accepted")
	}
	if _, err := decoder.Decode(unknown); err == nil {
		t.Fatalf("expected error for unknown topic")
	}

	record := subscriptionLog(t, model.EventSubscribed, 1, testOwner, 1, 0)
	record.Topics = record.Topics[:2]
	if _, err := decoder.Decode(record); err == nil {
		t.Fatalf("expected error for short topics")
	}
}

func TestTopic0Override(t *testing.T) {
	alias := common.HexToHash("0xabcdef")
	decoder, err := NewDecoder(map[string]string{alias.Hex(): "subscribed"})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(alias.Hex()) {
		t.Fatalf("alias not accepted")
	}
	if got := len(decoder.Topic0()); got != 6 {
		t.Fatalf("topic0 count: %d", got)
	}

	if _, err := NewDecoder(map[string]string{alias.Hex(): "Swap"}); err == nil {
		t.Fatalf("expected error for unknown event name")
	}
}

func mustDecoder(t *testing.T) *Decoder {
	t.Helper()
	decoder, err := NewDecoder(nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return decoder
}

func positionUpdatedLog(t *testing.T, tokenID int64, owner common.Address, tickLower, tickUpper int32, liquidity *big.Int, block, logIndex uint64) model.LogRecord {
	t.Helper()
	event := mustABI(t).Events[model.EventPositionUpdated]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(int64(tickLower)), big.NewInt(int64(tickUpper)), liquidity)
	if err != nil {
		t.Fatalf("pack position updated: %v", err)
	}
	return buildLogRecord(event.ID, data, []common.Hash{
		common.BigToHash(big.NewInt(tokenID)),
		testPool,
		common.BytesToHash(owner.Bytes()),
	}, block, logIndex)
}

func checkpointLog(t *testing.T, tokenID int64, index int64, fee0, fee1 *big.Int, block, logIndex uint64) model.LogRecord {
	t.Helper()
	event := mustABI(t).Events[model.EventCheckpoint]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(index), fee0, fee1)
	if err != nil {
		t.Fatalf("pack checkpoint: %v", err)
	}
	return buildLogRecord(event.ID, data, []common.Hash{
		common.BigToHash(big.NewInt(tokenID)),
		testPool,
	}, block, logIndex)
}

func subscriptionLog(t *testing.T, name string, tokenID int64, owner common.Address, block, logIndex uint64) model.LogRecord {
	t.Helper()
	event := mustABI(t).Events[name]
	return buildLogRecord(event.ID, nil, []common.Hash{
		common.BigToHash(big.NewInt(tokenID)),
		common.BytesToHash(owner.Bytes()),
	}, block, logIndex)
}

func mustABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return parsed
}

func buildLogRecord(topic0 common.Hash, data []byte, indexed []common.Hash, block, logIndex uint64) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     8453,
		BlockNumber: block,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    logIndex,
		Address:     testRegistry.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000 + block*2,
	}
}
