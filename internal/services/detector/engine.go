package detector

import (
	"PatternPull/internal/domain/models"
	"PatternPull/internal/services/indicators"
)

// Bar is the engine output for one candle.
type Bar struct {
	Index    int              `json:"index"`
	Candle   models.Candle    `json:"candle"`
	Frame    indicators.Frame `json:"-"`
	Adhesion bool             `json:"adhesion"`
	Density  Density          `json:"density"`
	Breakout Breakout         `json:"breakout"`
	Range    BreakoutState    `json:"range"`
	Gate     GateResult       `json:"gate"`
}

// Engine runs the detection pipeline over one series, one candle at a time.
// It is not safe for concurrent use; give every series its own Engine.
type Engine struct {
	cfg      Config
	calc     *indicators.Calculator
	density  *DensityTracker
	momentum *MomentumWindow
	state    BreakoutState
	index    int
}

// NewEngine creates an engine. cfg is expected to be valid.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:      cfg,
		calc:     indicators.NewCalculator(cfg.Periods()),
		density:  NewDensityTracker(cfg.DensityWindow, cfg.CrossThreshold),
		momentum: NewMomentumWindow(cfg.MomentumConfirmBars, cfg.MomentumThreshold),
	}
}

// Step feeds the next candle.
func (e *Engine) Step(c models.Candle) Bar {
	f := e.calc.Step(c.Close)
	adh := IsAdhesion(f, c.Close, e.cfg.AdhesionThresholdPct)
	dens := e.density.Step(f)

	var bo Breakout
	e.state, bo = Step(e.state, BreakoutInput{
		Adhesion: adh,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		ShortMA:  f.SMA[indicators.Short],
	})

	up, down := e.momentum.Step(f.Osc)
	gate := Evaluate(e.cfg, GateInput{
		Open:         c.Open,
		High:         c.High,
		Low:          c.Low,
		Close:        c.Close,
		Frame:        f,
		Breakout:     bo,
		MomentumUp:   up,
		MomentumDown: down,
	})

	b := Bar{
		Index:    e.index,
		Candle:   c,
		Frame:    f,
		Adhesion: adh,
		Density:  dens,
		Breakout: bo,
		Range:    e.state,
		Gate:     gate,
	}
	e.index++
	return b
}

// State returns the current breakout record.
func (e *Engine) State() BreakoutState { return e.state }

// Bars returns how many candles have been consumed.
func (e *Engine) Bars() int { return e.index }

// Run evaluates a whole series.
func Run(cfg Config, candles []models.Candle) []Bar {
	e := NewEngine(cfg)
	out := make([]Bar, len(candles))
	for i, c := range candles {
		out[i] = e.Step(c)
	}
	return out
}
