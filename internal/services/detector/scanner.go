package detector

import (
	"PatternPull/internal/domain/models"
	"PatternPull/internal/services/indicators"
)

// Sample is a labeled signal: the output window, the cluster inside it and its box.
type Sample struct {
	Event        models.SignalEvent
	Window       []Bar
	ClusterStart int // relative to Window
	ClusterEnd   int
	Box          models.BoundingBox
	Geometry     BoxGeometry
}

// Labeled strips the window bars off the sample.
func (s Sample) Labeled() models.LabeledSignal {
	return models.LabeledSignal{
		Event:        s.Event,
		ClusterStart: s.ClusterStart,
		ClusterEnd:   s.ClusterEnd,
		Box:          s.Box,
	}
}

// ScanResult is the outcome of scanning one series.
type ScanResult struct {
	Bars    []Bar
	Events  []models.SignalEvent
	Samples []Sample
}

// Scanner walks a series with a sliding window and emits gated signals.
type Scanner struct {
	cfg Config
}

// NewScanner creates a scanner. cfg is expected to be valid.
func NewScanner(cfg Config) *Scanner {
	return &Scanner{cfg: cfg}
}

// Config returns the scanner configuration.
func (s *Scanner) Config() Config { return s.cfg }

// FirstIndex is the first bar the scanner evaluates.
func (s *Scanner) FirstIndex() int {
	first := s.cfg.MAPeriods[indicators.Long]
	if s.cfg.WindowSize > first {
		first = s.cfg.WindowSize
	}
	return first
}

// Scan evaluates candles and returns every signal in bar order.
// When both directions pass on one bar the event is LONG; both flags are kept.
func (s *Scanner) Scan(candles []models.Candle) ScanResult {
	bars := Run(s.cfg, candles)
	res := ScanResult{Bars: bars}

	// each index is visited at most once, so a bar never emits twice
	for i := s.FirstIndex(); i < len(bars); i += s.cfg.Stride {
		ev, ok := EventFor(bars[i])
		if !ok {
			continue
		}
		long := ev.Long

		end := i + s.cfg.SignalLag
		if end < len(bars) {
			start := end - s.cfg.WindowSize + 1
			if start < 0 {
				start = 0
			}
			window := bars[start : end+1]
			cs, ce := LocateCluster(window, i-start, s.cfg)
			box, geo := MapBox(window, cs, ce, s.cfg.ClassFor(long), s.cfg)

			ev.WindowStart, ev.WindowEnd = start, end
			ev.Box = &box
			res.Samples = append(res.Samples, Sample{
				Event:        ev,
				Window:       window,
				ClusterStart: cs,
				ClusterEnd:   ce,
				Box:          box,
				Geometry:     geo,
			})
		}
		res.Events = append(res.Events, ev)
	}
	return res
}

// EventFor builds the unlabeled event for a bar whose gate fired.
// It reports false when neither direction passed or the long SMA is not warm.
func EventFor(b Bar) (models.SignalEvent, bool) {
	if !b.Frame.SMA[indicators.Long].OK {
		return models.SignalEvent{}, false
	}
	long, short := b.Gate.Bull.Signal, b.Gate.Bear.Signal
	if !long && !short {
		return models.SignalEvent{}, false
	}
	ev := models.SignalEvent{
		Symbol:      b.Candle.Symbol,
		Timestamp:   b.Candle.Bucket,
		Direction:   models.Short,
		Index:       b.Index,
		Close:       b.Candle.Close,
		WindowStart: -1,
		WindowEnd:   -1,
		Long:        long,
		Short:       short,
		Breakouts:   b.Breakout.Events(b.Index),
	}
	if long {
		ev.Direction = models.Long
	}
	return ev, true
}
