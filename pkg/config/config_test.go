package config

import (
	"strings"
	"testing"
	"time"
)

const minimal = `
environment: test
clickhouse:
  host: localhost
redis:
  addr: localhost:6379
`

func TestParseFillsDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Server.Port != 8080 || c.Kafka.SignalsTopic != "patternpull.signals" || c.Scanner.CacheTTL != 5*time.Minute {
		t.Fatalf("ambient defaults not applied: %+v", c)
	}

	d := c.Detector
	if len(d.MAPeriods) != 3 || d.MAPeriods[0] != 20 || d.MAPeriods[2] != 120 || d.WindowSize != 60 {
		t.Fatalf("detector defaults not applied: %+v", d)
	}
	if !Enabled(d.StrictFilter) || !Enabled(d.UseMomentumFilter) || d.SingleClass {
		t.Fatalf("detector switches: %+v", d)
	}
}

func TestDetectorSectionOverrides(t *testing.T) {
	c, err := Parse([]byte(minimal + `
detector:
  ma_periods: [10, 30, 90]
  strict_filter: false
  window_size: 40
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d := c.Detector
	if d.MAPeriods[0] != 10 || d.WindowSize != 40 || Enabled(d.StrictFilter) {
		t.Fatalf("overrides not applied: %+v", d)
	}
	if !Enabled(d.UseCandlePower) {
		t.Fatalf("omitted switch should keep its default")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no environment": "clickhouse: {host: h}\nredis: {addr: a}\n",
		"bad periods":    minimal + "detector:\n  ma_periods: [60, 20, 120]\n",
		"two periods":    minimal + "detector:\n  ma_periods: [20, 60]\n",
		"lag too large":  minimal + "detector:\n  window_size: 10\n  signal_lag: 10\n",
		"kafka brokers":  minimal + "kafka:\n  enabled: true\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	env := map[string]string{
		"KAFKA_BROKERS":   "k1:9092, k2:9092",
		"SYMBOLS":         "BTC-USDT,ETH-USDT,",
		"CLICKHOUSE_HOST": "ch",
		"LOG_LEVEL":       "debug",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	if strings.Join(c.Kafka.Brokers, "|") != "k1:9092|k2:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if len(c.OKX.Symbols) != 2 || c.ClickHouse.Host != "ch" || c.Log.Level != "debug" {
		t.Fatalf("env not applied: %+v %+v", c.OKX.Symbols, c.ClickHouse.Host)
	}
	if c.Redis.Addr != "localhost:6379" {
		t.Fatalf("unset variable should not override")
	}
}
