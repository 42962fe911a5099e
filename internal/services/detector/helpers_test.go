package detector

import (
	"math"
	"math/rand"
	"time"

	"PatternPull/internal/domain/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// candlesFromCloses opens each bar at the previous close and pads wicks by 0.1.
func candlesFromCloses(closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		o := prev
		out[i] = models.Candle{
			Bucket: t0.Add(time.Duration(i) * 5 * time.Minute),
			Symbol: "TEST",
			Open:   o,
			High:   math.Max(o, c) + 0.1,
			Low:    math.Min(o, c) - 0.1,
			Close:  c,
		}
		prev = c
	}
	return out
}

func flatCandles(n int, price float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Bucket: t0.Add(time.Duration(i) * 5 * time.Minute),
			Symbol: "FLAT",
			Open:   price, High: price, Low: price, Close: price,
		}
	}
	return out
}

func randomCloses(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	p := 100.0
	for i := range out {
		p += r.NormFloat64() * 0.6
		if p < 1 {
			p = 1
		}
		out[i] = p
	}
	return out
}

func boxInBounds(b models.BoundingBox) bool {
	return b.CX >= 0 && b.CX <= 1 && b.CY >= 0 && b.CY <= 1 &&
		b.W > 0 && b.W <= 1 && b.H > 0 && b.H <= 1
}
