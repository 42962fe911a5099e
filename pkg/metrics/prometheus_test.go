package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordSignal("BTC-USDT", "LONG")
	r.RecordSignal("BTC-USDT", "LONG")
	r.RecordScan("ok")
	r.RecordError("store")
	r.RecordLastClose("BTC-USDT", 42000.5)
	r.RecordLatency("scan", 0.2)

	if v := testutil.ToFloat64(r.signals.WithLabelValues("BTC-USDT", "LONG")); v != 2 {
		t.Fatalf("signals = %v", v)
	}
	if v := testutil.ToFloat64(r.scans.WithLabelValues("ok")); v != 1 {
		t.Fatalf("scans = %v", v)
	}
	if v := testutil.ToFloat64(r.lastClose.WithLabelValues("BTC-USDT")); v != 42000.5 {
		t.Fatalf("last close = %v", v)
	}
	if n := testutil.CollectAndCount(r.latency); n != 1 {
		t.Fatalf("latency series = %d", n)
	}
}
