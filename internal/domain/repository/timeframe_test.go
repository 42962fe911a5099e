package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"":     TF5m,
		"1m":   TF1m,
		"15m":  TF15m,
		"1H":   TF1H,
		"1h":   TF1H,
		" 4h ": TF4H,
		"1s":   TF5m,
		"1d":   TF5m,
	}
	for in, want := range cases {
		if got := NormalizeTimeframe(in); got != want {
			t.Fatalf("NormalizeTimeframe(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeframeDuration(t *testing.T) {
	if TF4H.Duration() != 4*time.Hour || TF15m.Duration() != 15*time.Minute {
		t.Fatalf("unexpected durations")
	}
	if Timeframe("2m").Duration() != 0 {
		t.Fatalf("unknown timeframe should have zero duration")
	}
}

func TestParseTimeframe(t *testing.T) {
	if tf, ok := ParseTimeframe("4h"); !ok || tf != TF4H {
		t.Fatalf("ParseTimeframe(4h) = %q, %v", tf, ok)
	}
	for _, s := range []string{"", "7m", "1D"} {
		if _, ok := ParseTimeframe(s); ok {
			t.Fatalf("ParseTimeframe(%q) should fail", s)
		}
	}
}
