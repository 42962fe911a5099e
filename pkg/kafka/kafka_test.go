package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 40; attempt++ {
		exp := max
		if attempt <= 4 {
			exp = min << uint(attempt-1)
		}
		for i := 0; i < 50; i++ {
			d := backoffWithJitter(min, max, attempt)
			if d > exp || d <= exp/2 {
				t.Fatalf("attempt %d: %v outside (%v, %v]", attempt, d, exp/2, exp)
			}
		}
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode([]byte("raw"))
	if err != nil || string(b) != "raw" {
		t.Fatalf("bytes: %q %v", b, err)
	}
	b, _ = Encode("text")
	if string(b) != "text" {
		t.Fatalf("string: %q", b)
	}
	b, _ = Encode(map[string]int{"n": 1})
	if string(b) != `{"n":1}` {
		t.Fatalf("json: %q", b)
	}
	if _, err := Encode(make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]kafka.Compression{
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
		"gzip":   kafka.Gzip,
		"":       kafka.Gzip,
	}
	for in, want := range cases {
		if got := parseCompression(in); got != want {
			t.Fatalf("%q: got %v, want %v", in, got, want)
		}
	}
}

func TestHookChainOrder(t *testing.T) {
	var calls []string
	rec := func(name string) HookFuncs {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, name)
				return ctx, km, d, nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				calls = append(calls, name+"-after")
				panic("ignored")
			},
		}
	}
	stop := HookFuncs{Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
		return ctx, km, d, errors.New("reject")
	}}

	chain := HookChain{rec("a"), rec("b"), stop, rec("c")}
	if _, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil); err == nil {
		t.Fatalf("expected the chain to stop")
	}
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)

	want := []string{"a", "b", "a-after", "b-after", "c-after"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestTraceHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook{}.BeforeHandle(context.Background(), "t", km, nil)
	if err != nil || TraceID(ctx) != "abc" {
		t.Fatalf("trace id = %q err=%v", TraceID(ctx), err)
	}
	if TraceID(context.Background()) != "" {
		t.Fatalf("empty context should have no trace id")
	}
}

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Topic() string { return "candles" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("boom")
	}
	return nil
}

func TestProcessRetries(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}

	h := &flakyHandler{failures: 2}
	c.RegisterHandler(h)
	var errs int
	c.SetHook(HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ }})

	c.process(&message{topic: "candles", km: kafka.Message{Value: []byte("{}")}})
	if h.calls != 3 || errs != 2 {
		t.Fatalf("calls=%d errs=%d, want 3 and 2", h.calls, errs)
	}

	h2 := &flakyHandler{failures: 10}
	c.handlers["candles"] = h2
	c.process(&message{topic: "candles", km: kafka.Message{}})
	if h2.calls != 3 {
		t.Fatalf("exhausted handler called %d times, want 3", h2.calls)
	}
}

func TestNewRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("consumer without brokers should fail")
	}
	if _, err := NewProducer(); err == nil {
		t.Fatalf("producer without brokers should fail")
	}
}
