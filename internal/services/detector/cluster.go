package detector

import (
	"math"

	"PatternPull/internal/domain/models"
)

// LocateCluster finds the adhesion run ending at center within bars.
// It walks left while bars are in adhesion. A run narrower than
// MinClusterWidth is replaced by a FallbackClusterWidth window centred on
// center and clipped to bars.
func LocateCluster(bars []Bar, center int, cfg Config) (start, end int) {
	n := len(bars)
	if n == 0 {
		return 0, 0
	}
	if center < 0 {
		center = 0
	}
	if center >= n {
		center = n - 1
	}

	end = center
	start = center
	for start > 0 && bars[start].Adhesion {
		start--
	}
	if !bars[start].Adhesion {
		start++
	}

	if end-start >= cfg.MinClusterWidth {
		return start, end
	}

	half := cfg.FallbackClusterWidth / 2
	start = center - half
	end = center + (cfg.FallbackClusterWidth - half)
	if start < 0 {
		start = 0
	}
	if end > n-1 {
		end = n - 1
	}
	return start, end
}

// BoxGeometry exposes the price-space quantities behind a box.
type BoxGeometry struct {
	WindowLow   float64 `json:"window_low"` // plot limits, padded
	WindowHigh  float64 `json:"window_high"`
	ClusterLow  float64 `json:"cluster_low"` // raw MA extent over the cluster
	ClusterHigh float64 `json:"cluster_high"`
	PaddedLow   float64 `json:"padded_low"`
	PaddedHigh  float64 `json:"padded_high"`
}

// MapBox converts the cluster [start,end] of window into a normalized box.
// x runs over bar positions, y over price with the axis flipped.
func MapBox(window []Bar, start, end, classID int, cfg Config) (models.BoundingBox, BoxGeometry) {
	var g BoxGeometry
	n := len(window)
	if n == 0 {
		return models.BoundingBox{ClassID: classID, W: cfg.MinBoxDim, H: cfg.MinBoxDim}, g
	}
	if start > end {
		start, end = end, start
	}
	start = clampInt(start, 0, n-1)
	end = clampInt(end, 0, n-1)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range window {
		lo = math.Min(lo, b.Candle.Low)
		hi = math.Max(hi, b.Candle.High)
		for _, ma := range b.Frame.MAs() {
			if ma.OK {
				lo = math.Min(lo, ma.V)
				hi = math.Max(hi, ma.V)
			}
		}
	}
	pad := (hi - lo) * cfg.PlotPadding
	g.WindowLow, g.WindowHigh = lo-pad, hi+pad

	cLo, cHi := math.Inf(1), math.Inf(-1)
	for _, b := range window[start : end+1] {
		for _, ma := range b.Frame.MAs() {
			if ma.OK {
				cLo = math.Min(cLo, ma.V)
				cHi = math.Max(cHi, ma.V)
			}
		}
	}
	if math.IsInf(cLo, 1) {
		// no MA inside the cluster; fall back to wicks
		for _, b := range window[start : end+1] {
			cLo = math.Min(cLo, b.Candle.Low)
			cHi = math.Max(cHi, b.Candle.High)
		}
	}
	g.ClusterLow, g.ClusterHigh = cLo, cHi
	cpad := (cHi - cLo) * cfg.BoxPadding
	g.PaddedLow, g.PaddedHigh = cLo-cpad, cHi+cpad

	den := float64(n - 1)
	if den == 0 {
		den = 1
	}
	x1 := float64(start) / den
	x2 := float64(end) / den

	normY := func(p float64) float64 {
		span := g.WindowHigh - g.WindowLow
		if span <= 0 {
			return 0.5
		}
		return 1 - (p-g.WindowLow)/span
	}
	yTop := normY(g.PaddedHigh)
	yBottom := normY(g.PaddedLow)

	box := models.BoundingBox{
		ClassID: classID,
		CX:      clamp((x1+x2)/2, 0, 1),
		CY:      clamp((yTop+yBottom)/2, 0, 1),
		W:       clamp(math.Abs(x2-x1), cfg.MinBoxDim, 1),
		H:       clamp(math.Abs(yBottom-yTop), cfg.MinBoxDim, 1),
	}
	return box, g
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
