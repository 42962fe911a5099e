package detector

import (
	"math"

	"PatternPull/internal/services/indicators"
)

// Spread returns the largest pairwise absolute difference among the three SMAs.
func Spread(f indicators.Frame) (float64, bool) {
	s := f.SMA
	if !s[0].OK || !s[1].OK || !s[2].OK {
		return 0, false
	}
	d := math.Abs(s[0].V - s[1].V)
	d = math.Max(d, math.Abs(s[1].V-s[2].V))
	d = math.Max(d, math.Abs(s[0].V-s[2].V))
	return d, true
}

// IsAdhesion reports whether the SMAs sit within thresholdPct percent of close.
// It depends only on the bar's own frame and close.
func IsAdhesion(f indicators.Frame, close, thresholdPct float64) bool {
	d, ok := Spread(f)
	if !ok {
		return false
	}
	return d <= close*thresholdPct/100.0
}

// Density is the crossover activity over the trailing window.
type Density struct {
	Total   int  `json:"total"`
	Bullish int  `json:"bullish"`
	Bearish int  `json:"bearish"`
	Ready   bool `json:"ready"` // window has filled
	Dense   bool `json:"dense"`
}

// DensityTracker counts crossover events in a fixed trailing window.
type DensityTracker struct {
	threshold int
	total     []bool
	bull      []bool
	bear      []bool
	next      int
	filled    int
	counts    [3]int
}

// NewDensityTracker creates a tracker over window bars.
func NewDensityTracker(window, threshold int) *DensityTracker {
	if window < 1 {
		window = 1
	}
	return &DensityTracker{
		threshold: threshold,
		total:     make([]bool, window),
		bull:      make([]bool, window),
		bear:      make([]bool, window),
	}
}

// Step records the crossover flags of the next bar.
func (d *DensityTracker) Step(f indicators.Frame) Density {
	var up, down bool
	for k := range indicators.Pairs {
		up = up || f.CrossUp[k]
		down = down || f.CrossDown[k]
	}
	hit := up || down

	if d.filled == len(d.total) {
		d.counts[0] -= b2i(d.total[d.next])
		d.counts[1] -= b2i(d.bull[d.next])
		d.counts[2] -= b2i(d.bear[d.next])
	} else {
		d.filled++
	}
	d.total[d.next], d.bull[d.next], d.bear[d.next] = hit, up, down
	d.counts[0] += b2i(hit)
	d.counts[1] += b2i(up)
	d.counts[2] += b2i(down)
	d.next = (d.next + 1) % len(d.total)

	ready := d.filled == len(d.total)
	return Density{
		Total:   d.counts[0],
		Bullish: d.counts[1],
		Bearish: d.counts[2],
		Ready:   ready,
		Dense:   ready && d.counts[0] >= d.threshold,
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
