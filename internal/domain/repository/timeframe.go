package repository

import (
	"strings"
	"time"
)

// Timeframe is a candle resolution in OKX bar notation.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1H  Timeframe = "1H"
	TF4H  Timeframe = "4H"
)

func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1H, TF4H:
		return true
	default:
		return false
	}
}

func DefaultTimeframe() Timeframe { return TF5m }

// ParseTimeframe accepts OKX notation and lowercase hour bars ("1h").
func ParseTimeframe(s string) (Timeframe, bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "h") {
		s = strings.TrimSuffix(s, "h") + "H"
	}
	tf := Timeframe(s)
	return tf, IsValidTimeframe(tf)
}

// NormalizeTimeframe is ParseTimeframe falling back to the default.
func NormalizeTimeframe(s string) Timeframe {
	if tf, ok := ParseTimeframe(s); ok {
		return tf
	}
	return DefaultTimeframe()
}

// Duration is zero for unknown timeframes.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1H:
		return time.Hour
	case TF4H:
		return 4 * time.Hour
	default:
		return 0
	}
}
