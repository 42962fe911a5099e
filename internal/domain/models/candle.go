package models

import (
	"fmt"
	"math"
	"time"
)

// Candle represents an OHLCV bar. Series are ordered by Bucket, oldest first.
type Candle struct {
	Bucket time.Time `json:"t"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// Valid checks that prices are finite and internally consistent.
func (c Candle) Valid() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("candle %s: non-finite price", c.Bucket.Format(time.RFC3339))
		}
	}
	if c.High < c.Low {
		return fmt.Errorf("candle %s: high < low", c.Bucket.Format(time.RFC3339))
	}
	if c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("candle %s: open/close outside high-low range", c.Bucket.Format(time.RFC3339))
	}
	return nil
}

// Closes extracts close prices.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
