package detector

import (
	"PatternPull/internal/domain/models"
	"PatternPull/internal/services/indicators"
)

// BreakoutState is the full memory of both breakout mechanisms.
type BreakoutState struct {
	// episodic scheme
	PendingBull bool `json:"pending_bull"`
	PendingBear bool `json:"pending_bear"`

	// range scheme; the range survives non-adhesion bars until the next episode starts
	RangeDefined bool    `json:"range_defined"`
	RangeHigh    float64 `json:"range_high"`
	RangeLow     float64 `json:"range_low"`
	PrevAdhesion bool    `json:"prev_adhesion"`
}

// BreakoutInput is what one bar contributes to the state machine.
type BreakoutInput struct {
	Adhesion bool
	High     float64
	Low      float64
	Close    float64
	ShortMA  indicators.Value
}

// Breakout holds the firings of one bar.
type Breakout struct {
	EpisodicUp   bool `json:"episodic_up"`
	EpisodicDown bool `json:"episodic_down"`
	RangeUp      bool `json:"range_up"`
	RangeDown    bool `json:"range_down"`
}

// Step advances the state by one bar. It is pure: the caller keeps the returned state.
func Step(s BreakoutState, in BreakoutInput) (BreakoutState, Breakout) {
	var out Breakout

	if in.Adhesion {
		s.PendingBull = true
		s.PendingBear = true
	} else if in.ShortMA.OK {
		if s.PendingBull && in.Close > in.ShortMA.V {
			out.EpisodicUp = true
			s.PendingBull = false
		}
		if s.PendingBear && in.Close < in.ShortMA.V {
			out.EpisodicDown = true
			s.PendingBear = false
		}
	}

	if in.Adhesion {
		if !s.PrevAdhesion || !s.RangeDefined {
			s.RangeHigh = in.High
			s.RangeLow = in.Low
			s.RangeDefined = true
		} else {
			if in.High > s.RangeHigh {
				s.RangeHigh = in.High
			}
			if in.Low < s.RangeLow {
				s.RangeLow = in.Low
			}
		}
	}

	if s.RangeDefined {
		out.RangeUp = in.Close > s.RangeHigh
		out.RangeDown = in.Close < s.RangeLow
	}

	s.PrevAdhesion = in.Adhesion
	return s, out
}

// Any reports whether anything fired.
func (b Breakout) Any() bool {
	return b.EpisodicUp || b.EpisodicDown || b.RangeUp || b.RangeDown
}

// Events lists the firings of a bar as domain events.
func (b Breakout) Events(index int) []models.BreakoutEvent {
	var out []models.BreakoutEvent
	if b.EpisodicUp {
		out = append(out, models.BreakoutEvent{Move: models.MoveUp, Scheme: models.SchemeEpisodic, Index: index})
	}
	if b.EpisodicDown {
		out = append(out, models.BreakoutEvent{Move: models.MoveDown, Scheme: models.SchemeEpisodic, Index: index})
	}
	if b.RangeUp {
		out = append(out, models.BreakoutEvent{Move: models.MoveUp, Scheme: models.SchemeRange, Index: index})
	}
	if b.RangeDown {
		out = append(out, models.BreakoutEvent{Move: models.MoveDown, Scheme: models.SchemeRange, Index: index})
	}
	return out
}
