package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLogRecordFieldNames(t *testing.T) {
	record := LogRecord{
		ChainID:     8453,
		BlockNumber: 25000000,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		LogIndex:    12,
		Address:     "0x3994e3ae3Cf62bD2a3a83dcE73636E954852BB04",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
	}

	b, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{`"chain_id":8453`, `"block_number":25000000`, `"log_index":12`, `"topics":["0xaaa","0xbbb"]`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("missing %s in %s", key, b)
		}
	}
}

func TestLogRecordTopic0AndKey(t *testing.T) {
	record := LogRecord{BlockHash: "0xabc", LogIndex: 3, Topics: []string{"0x01", "0x02"}}
	if got := record.Topic0(); got != "0x01" {
		t.Fatalf("topic0 = %q", got)
	}
	if got := record.Key(); got != "0xabc:3" {
		t.Fatalf("key = %q", got)
	}
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("anonymous topic0 = %q", got)
	}
}
