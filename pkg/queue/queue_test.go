package queue

import (
	"encoding/json"
	"testing"
	"time"
)

type scanPayload struct {
	Symbol string `json:"symbol"`
	Limit  int    `json:"limit"`
}

func TestNewMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a, err := newMessage("scan", scanPayload{Symbol: "BTC-USDT", Limit: 300}, now)
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}
	b, _ := newMessage("scan", scanPayload{}, now)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids should be unique: %q %q", a.ID, b.ID)
	}
	if a.Attempts != 0 || !a.Timestamp.Equal(now) {
		t.Fatalf("unexpected message %+v", a)
	}

	data, _ := json.Marshal(a)
	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, err := ParsePayload[scanPayload](decoded.Payload)
	if err != nil || p.Symbol != "BTC-USDT" || p.Limit != 300 {
		t.Fatalf("payload = %+v, %v", p, err)
	}

	if _, err := newMessage("scan", make(chan int), now); err == nil {
		t.Fatalf("unencodable payload should fail")
	}
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	if _, err := ParsePayload[scanPayload](json.RawMessage(`{"symbol":`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		attempts, limit int
		want            bool
	}{
		{1, 0, false},
		{1, 3, true},
		{3, 3, true},
		{4, 3, false},
	}
	for _, tc := range cases {
		if got := shouldRetry(tc.attempts, tc.limit); got != tc.want {
			t.Fatalf("shouldRetry(%d,%d) = %v", tc.attempts, tc.limit, got)
		}
	}
}
