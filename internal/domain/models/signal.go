package models

import "time"

// Direction is the side of a detected signal.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Move is the direction of a breakout.
type Move string

const (
	MoveUp   Move = "up"
	MoveDown Move = "down"
)

// Scheme identifies which breakout mechanism fired.
type Scheme string

const (
	SchemeEpisodic Scheme = "episodic"
	SchemeRange    Scheme = "range"
)

// BreakoutEvent is a single breakout firing.
type BreakoutEvent struct {
	Move   Move   `json:"move"`
	Scheme Scheme `json:"scheme"`
	Index  int    `json:"index"`
}

// BoundingBox is a normalized label box; image origin is top-left.
type BoundingBox struct {
	ClassID int     `json:"class_id"`
	CX      float64 `json:"cx"`
	CY      float64 `json:"cy"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
}

// SignalEvent is a gated signal on one bar.
// WindowStart/WindowEnd are series indices; both are -1 when the series
// ends before the output window can be formed.
type SignalEvent struct {
	ID          string          `json:"id,omitempty"`
	Symbol      string          `json:"symbol"`
	Timeframe   string          `json:"tf,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Direction   Direction       `json:"direction"`
	Index       int             `json:"index"`
	Close       float64         `json:"close"`
	WindowStart int             `json:"window_start"`
	WindowEnd   int             `json:"window_end"`
	Long        bool            `json:"long"`
	Short       bool            `json:"short"`
	Breakouts   []BreakoutEvent `json:"breakouts,omitempty"`
	Box         *BoundingBox    `json:"box,omitempty"`
}

// HasWindow reports whether an output window was formed for the event.
func (e SignalEvent) HasWindow() bool { return e.WindowStart >= 0 && e.WindowEnd >= e.WindowStart }

// LabeledSignal is a signal whose output window was formed, with the
// cluster bounds relative to that window and the resulting box.
type LabeledSignal struct {
	Event        SignalEvent `json:"event"`
	ClusterStart int         `json:"cluster_start"`
	ClusterEnd   int         `json:"cluster_end"`
	Box          BoundingBox `json:"box"`
}

// ScanSummary is the result of scanning one series.
type ScanSummary struct {
	ScanID    string        `json:"scan_id"`
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"tf"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	Bars      int           `json:"bars"`
	Longs     int           `json:"longs"`
	Shorts    int           `json:"shorts"`
	Labeled   int           `json:"labeled"`
	Events    []SignalEvent `json:"events"`
	Cached    bool          `json:"cached"`
}
