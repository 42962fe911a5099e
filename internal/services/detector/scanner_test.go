package detector

import (
	"reflect"
	"testing"

	"PatternPull/internal/domain/models"
	"PatternPull/internal/services/indicators"
)

func permissiveConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := New(
		WithMAPeriods(5, 10, 20),
		WithMomentum(false, 3, 80, 10),
		WithAlignment(false),
		WithCandlePower(false, 75),
		WithPositionFilter(false, 0),
		WithScan(3, 30, 2),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cfg
}

func TestConstantSeriesNeverSignals(t *testing.T) {
	cfg := DefaultConfig()
	candles := flatCandles(400, 100)
	res := NewScanner(cfg).Scan(candles)
	if len(res.Events) != 0 {
		t.Fatalf("constant series produced %d events", len(res.Events))
	}

	firstOsc := 2*cfg.MomentumLength - 2
	for i, b := range res.Bars {
		if i >= firstOsc && (!b.Frame.Osc.OK || b.Frame.Osc.V != 0) {
			t.Fatalf("bar %d: oscillator = %+v, want defined zero", i, b.Frame.Osc)
		}
		if b.Frame.Warm() && b.Gate.Bull.Momentum {
			t.Fatalf("bar %d: momentum should fail on a flat series", i)
		}
	}
}

// flatThenRise holds 100 for flat bars, then compounds 2% per bar.
func flatThenRise(flat, rise int) []models.Candle {
	out := flatCandles(flat+rise, 100)
	prev := 100.0
	for i := flat; i < flat+rise; i++ {
		c := prev * 1.02
		out[i].Open, out[i].Low = prev, prev
		out[i].High, out[i].Close = c, c
		prev = c
	}
	return out
}

func TestEpisodicBreakoutAfterFlatSegment(t *testing.T) {
	cfg := DefaultConfig()
	bars := Run(cfg, flatThenRise(150, 30))

	want := -1
	for i := 150; i < len(bars); i++ {
		if !bars[i].Adhesion {
			want = i
			break
		}
	}
	if want < 0 {
		t.Fatalf("adhesion never ended")
	}

	var ups []int
	for i, b := range bars {
		if b.Breakout.EpisodicUp {
			ups = append(ups, i)
		}
		if b.Breakout.EpisodicDown {
			t.Fatalf("bar %d: unexpected episodic down", i)
		}
	}
	if len(ups) != 1 || ups[0] != want {
		t.Fatalf("episodic up at %v, want exactly [%d]", ups, want)
	}
	b := bars[want]
	if b.Candle.Close <= b.Frame.SMA[indicators.Short].V {
		t.Fatalf("breakout bar should close above the short MA")
	}
}

func TestScannerEventsFollowGate(t *testing.T) {
	cfg := permissiveConfig(t)
	candles := candlesFromCloses(randomCloses(1200, 11))
	sc := NewScanner(cfg)
	res := sc.Scan(candles)

	if len(res.Events) == 0 {
		t.Fatalf("expected events on a random walk with filters off")
	}
	if sc.FirstIndex() != 30 {
		t.Fatalf("first index = %d, want 30", sc.FirstIndex())
	}

	emitted := map[int]bool{}
	prev := -1
	for _, ev := range res.Events {
		if ev.Index <= prev {
			t.Fatalf("events out of order at %d", ev.Index)
		}
		prev = ev.Index
		emitted[ev.Index] = true

		if (ev.Index-sc.FirstIndex())%cfg.Stride != 0 {
			t.Fatalf("event %d is off the stride grid", ev.Index)
		}
		if ev.Long && ev.Direction != models.Long {
			t.Fatalf("event %d: LONG must win when both pass", ev.Index)
		}
		if ev.Symbol != "TEST" || !ev.Timestamp.Equal(candles[ev.Index].Bucket) {
			t.Fatalf("event %d: wrong symbol/timestamp", ev.Index)
		}

		end := ev.Index + cfg.SignalLag
		if end >= len(candles) {
			if ev.HasWindow() || ev.Box != nil {
				t.Fatalf("event %d: window past series end", ev.Index)
			}
			continue
		}
		if ev.WindowEnd != end || ev.WindowStart != end-cfg.WindowSize+1 {
			t.Fatalf("event %d: window [%d,%d]", ev.Index, ev.WindowStart, ev.WindowEnd)
		}
		if ev.Box == nil || !boxInBounds(*ev.Box) {
			t.Fatalf("event %d: bad box %+v", ev.Index, ev.Box)
		}
	}

	for i := sc.FirstIndex(); i < len(res.Bars); i += cfg.Stride {
		g := res.Bars[i].Gate
		if want := g.Bull.Signal || g.Bear.Signal; want != emitted[i] {
			t.Fatalf("bar %d: gate=%v emitted=%v", i, want, emitted[i])
		}
	}
	if len(res.Samples) == 0 {
		t.Fatalf("expected labeled samples")
	}
	for _, s := range res.Samples {
		if len(s.Window) != cfg.WindowSize {
			t.Fatalf("sample %d: window len %d", s.Event.Index, len(s.Window))
		}
		if s.Box.ClassID != cfg.ClassFor(s.Event.Long) {
			t.Fatalf("sample %d: class %d", s.Event.Index, s.Box.ClassID)
		}
	}
}

func TestScannerSignalAtSeriesEndIsUnlabeled(t *testing.T) {
	cfg := permissiveConfig(t)
	candles := candlesFromCloses(randomCloses(600, 5))
	full := NewScanner(cfg).Scan(candles)

	var ev *models.SignalEvent
	for i := range full.Events {
		if full.Events[i].HasWindow() {
			ev = &full.Events[i]
			break
		}
	}
	if ev == nil {
		t.Fatalf("no labeled events to truncate")
	}

	// cut the series right after the signal bar; history is unchanged
	res := NewScanner(cfg).Scan(candles[:ev.Index+1])
	last := res.Events[len(res.Events)-1]
	if last.Index != ev.Index {
		t.Fatalf("last event %d, want %d", last.Index, ev.Index)
	}
	if last.HasWindow() || last.Box != nil || last.WindowStart != -1 || last.WindowEnd != -1 {
		t.Fatalf("truncated event should carry no window: %+v", last)
	}
	for _, s := range res.Samples {
		if s.Event.Index == ev.Index {
			t.Fatalf("truncated event must not produce a sample")
		}
	}
}

func TestScanIsDeterministic(t *testing.T) {
	cfg := permissiveConfig(t)
	candles := candlesFromCloses(randomCloses(500, 3))
	a := NewScanner(cfg).Scan(candles)
	b := NewScanner(cfg).Scan(candles)
	if !reflect.DeepEqual(a.Events, b.Events) {
		t.Fatalf("two scans of the same series differ")
	}
}

func TestEngineStreamingMatchesRun(t *testing.T) {
	cfg := DefaultConfig()
	candles := candlesFromCloses(randomCloses(400, 9))
	batch := Run(cfg, candles)

	e := NewEngine(cfg)
	for i, c := range candles {
		got := e.Step(c)
		if !reflect.DeepEqual(got, batch[i]) {
			t.Fatalf("bar %d differs between streaming and batch", i)
		}
	}
	if e.Bars() != len(candles) {
		t.Fatalf("Bars() = %d", e.Bars())
	}
	if e.State() != batch[len(batch)-1].Range {
		t.Fatalf("final state mismatch")
	}
}
