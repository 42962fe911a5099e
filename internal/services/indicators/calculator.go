package indicators

import "math"

// devEpsilon is the relative tolerance under which an oscillator deviation is rounding noise.
const devEpsilon = 1e-12

// MA slots, ordered short to long.
const (
	Short = 0
	Mid   = 1
	Long  = 2
)

// Pairs lists the simple-MA pairs checked for crossovers: short/mid, mid/long, short/long.
var Pairs = [3][2]int{{Short, Mid}, {Mid, Long}, {Short, Long}}

// Periods configures the calculator.
type Periods struct {
	MA        [3]int // short, mid, long
	OscLength int    // base SMA length and normalizer window of the oscillator
}

// Value is a possibly undefined indicator reading.
type Value struct {
	V  float64
	OK bool
}

// Some wraps a defined value.
func Some(v float64) Value { return Value{V: v, OK: true} }

// Frame holds the indicator readings for one bar.
type Frame struct {
	SMA       [3]Value
	EMA       [3]Value
	Osc       Value
	CrossUp   [3]bool // indexed like Pairs
	CrossDown [3]bool
}

// Warm reports whether all six moving averages are defined.
func (f Frame) Warm() bool {
	for i := 0; i < 3; i++ {
		if !f.SMA[i].OK || !f.EMA[i].OK {
			return false
		}
	}
	return true
}

// MAs returns the six moving averages, simple first.
func (f Frame) MAs() [6]Value {
	return [6]Value{f.SMA[0], f.SMA[1], f.SMA[2], f.EMA[0], f.EMA[1], f.EMA[2]}
}

// Crossover reports a strictly overtaking b between the previous and current bar.
func Crossover(a, b, prevA, prevB Value) bool {
	if !a.OK || !b.OK || !prevA.OK || !prevB.OK {
		return false
	}
	return a.V > b.V && prevA.V <= prevB.V
}

// Crossunder reports a strictly falling below b between the previous and current bar.
func Crossunder(a, b, prevA, prevB Value) bool {
	if !a.OK || !b.OK || !prevA.OK || !prevB.OK {
		return false
	}
	return a.V < b.V && prevA.V >= prevB.V
}

// Calculator advances all indicators one close at a time.
// Its memory is bounded by the configured periods, not by series length.
type Calculator struct {
	periods Periods
	bars    int

	sma     [3]ringSum
	ema     [3]float64
	alpha   [3]float64
	prevSMA [3]Value

	oscBase ringSum
	oscMax  rollingMax
}

// NewCalculator creates a calculator for the given periods.
func NewCalculator(p Periods) *Calculator {
	c := &Calculator{
		periods: p,
		oscBase: newRingSum(p.OscLength),
		oscMax:  newRollingMax(p.OscLength),
	}
	for i := 0; i < 3; i++ {
		c.sma[i] = newRingSum(p.MA[i])
		c.alpha[i] = 2.0 / (float64(p.MA[i]) + 1.0)
	}
	return c
}

// Bars returns the number of closes consumed so far.
func (c *Calculator) Bars() int { return c.bars }

// Step consumes the next close and returns the frame for that bar.
func (c *Calculator) Step(close float64) Frame {
	var f Frame
	first := c.bars == 0
	c.bars++

	for i := 0; i < 3; i++ {
		c.sma[i].push(close)
		if c.sma[i].full() {
			f.SMA[i] = Some(c.sma[i].mean())
		}

		// EMA recursion is seeded on the first close but only reported once its span has elapsed.
		if first {
			c.ema[i] = close
		} else {
			c.ema[i] = c.alpha[i]*close + (1-c.alpha[i])*c.ema[i]
		}
		if c.bars >= c.periods.MA[i] {
			f.EMA[i] = Some(c.ema[i])
		}
	}

	for k, p := range Pairs {
		f.CrossUp[k] = Crossover(f.SMA[p[0]], f.SMA[p[1]], c.prevSMA[p[0]], c.prevSMA[p[1]])
		f.CrossDown[k] = Crossunder(f.SMA[p[0]], f.SMA[p[1]], c.prevSMA[p[0]], c.prevSMA[p[1]])
	}
	c.prevSMA = f.SMA

	f.Osc = c.stepOscillator(close)
	return f
}

func (c *Calculator) stepOscillator(close float64) Value {
	c.oscBase.push(close)
	if !c.oscBase.full() {
		return Value{}
	}
	dev := close - c.oscBase.mean()
	if math.Abs(dev) <= devEpsilon*math.Abs(close) {
		dev = 0
	}
	c.oscMax.push(math.Abs(dev))
	if !c.oscMax.full() {
		return Value{}
	}
	norm := c.oscMax.max()
	if norm == 0 {
		return Some(0)
	}
	return Some(100 * dev / norm)
}

// Compute runs a fresh calculator across closes.
func Compute(closes []float64, p Periods) []Frame {
	c := NewCalculator(p)
	out := make([]Frame, len(closes))
	for i, v := range closes {
		out[i] = c.Step(v)
	}
	return out
}
