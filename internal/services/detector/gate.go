package detector

import (
	"PatternPull/internal/services/indicators"
)

// MomentumWindow remembers whether the oscillator reached ±threshold on any of
// the last confirmBars+1 bars, the current bar included.
type MomentumWindow struct {
	threshold float64
	up        []bool
	down      []bool
	next      int
	filled    int
	upHits    int
	downHits  int
}

// NewMomentumWindow creates a window over confirmBars trailing bars plus the current one.
func NewMomentumWindow(confirmBars int, threshold float64) *MomentumWindow {
	if confirmBars < 0 {
		confirmBars = 0
	}
	return &MomentumWindow{
		threshold: threshold,
		up:        make([]bool, confirmBars+1),
		down:      make([]bool, confirmBars+1),
	}
}

// Step records the next oscillator reading and reports the window state.
// An undefined reading counts as a miss in both directions.
func (m *MomentumWindow) Step(osc indicators.Value) (up, down bool) {
	u := osc.OK && osc.V >= m.threshold
	d := osc.OK && osc.V <= -m.threshold

	if m.filled == len(m.up) {
		m.upHits -= b2i(m.up[m.next])
		m.downHits -= b2i(m.down[m.next])
	} else {
		m.filled++
	}
	m.up[m.next], m.down[m.next] = u, d
	m.upHits += b2i(u)
	m.downHits += b2i(d)
	m.next = (m.next + 1) % len(m.up)

	return m.upHits > 0, m.downHits > 0
}

// GateInput is everything the gate looks at for one bar.
type GateInput struct {
	Open, High, Low, Close float64
	Frame                  indicators.Frame
	Breakout               Breakout
	MomentumUp             bool
	MomentumDown           bool
}

// Side is the per-filter verdict for one direction.
type Side struct {
	Trigger   bool `json:"trigger"`
	Confirm   bool `json:"confirm"`
	Count     int  `json:"count"`
	Position  bool `json:"position"`
	Alignment bool `json:"alignment"`
	Momentum  bool `json:"momentum"`
	Power     bool `json:"power"`
	Signal    bool `json:"signal"`
}

// GateResult holds both directions; they are evaluated independently.
type GateResult struct {
	Bull Side `json:"bull"`
	Bear Side `json:"bear"`
}

// Evaluate applies trigger and filters to one bar. A bar without all six
// moving averages defined never signals.
func Evaluate(cfg Config, in GateInput) GateResult {
	var r GateResult
	f := in.Frame
	if !f.Warm() {
		return r
	}

	r.Bull.Trigger = f.CrossUp[0] || in.Breakout.EpisodicUp
	r.Bull.Confirm = in.Breakout.RangeUp || f.CrossUp[0]
	r.Bear.Trigger = f.CrossDown[0] || in.Breakout.EpisodicDown
	r.Bear.Confirm = in.Breakout.RangeDown || f.CrossDown[0]

	for _, ma := range f.MAs() {
		if in.Open > ma.V && in.Close > ma.V {
			r.Bull.Count++
		}
		if in.Open < ma.V && in.Close < ma.V {
			r.Bear.Count++
		}
	}
	r.Bull.Position = positionOK(cfg, r.Bull.Count)
	r.Bear.Position = positionOK(cfg, r.Bear.Count)

	r.Bull.Alignment, r.Bear.Alignment = true, true
	if cfg.UseAlignmentFilter {
		s := f.SMA
		r.Bull.Alignment = s[0].V > s[1].V && s[1].V > s[2].V
		r.Bear.Alignment = s[0].V < s[1].V && s[1].V < s[2].V
	}

	r.Bull.Momentum, r.Bear.Momentum = true, true
	if cfg.UseMomentumFilter {
		r.Bull.Momentum = in.MomentumUp
		r.Bear.Momentum = in.MomentumDown
	}

	r.Bull.Power, r.Bear.Power = true, true
	if cfg.UseCandlePower {
		rng := in.High - in.Low
		if rng > 0 {
			r.Bull.Power = (in.Close-in.Low)/rng*100 >= cfg.PowerRatio
			r.Bear.Power = (in.High-in.Close)/rng*100 >= cfg.PowerRatio
		} else {
			r.Bull.Power, r.Bear.Power = false, false
		}
	}

	r.Bull.Signal = r.Bull.pass()
	r.Bear.Signal = r.Bear.pass()
	return r
}

func positionOK(cfg Config, count int) bool {
	if cfg.StrictFilter {
		return count == 6
	}
	return count >= cfg.MinMAConfirm
}

func (s Side) pass() bool {
	return s.Trigger && s.Confirm && s.Position && s.Alignment && s.Momentum && s.Power
}
