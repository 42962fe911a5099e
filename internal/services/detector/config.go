package detector

import (
	"errors"
	"fmt"

	"PatternPull/internal/services/indicators"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid detector config")

// Config is the immutable detector configuration. Copy it freely; nothing in
// the engine mutates it, so one value can drive many series concurrently.
type Config struct {
	MAPeriods            [3]int  // short, mid, long simple/exponential periods
	AdhesionThresholdPct float64 // max SMA spread as percent of close

	DensityWindow  int
	CrossThreshold int

	StrictFilter bool
	MinMAConfirm int // lenient mode: MAs the candle must clear

	UseMomentumFilter   bool
	MomentumConfirmBars int
	MomentumThreshold   float64
	MomentumLength      int

	UseAlignmentFilter bool

	UseCandlePower bool
	PowerRatio     float64 // percent of the high-low range

	Stride     int
	WindowSize int
	SignalLag  int // bars between the signal and the window's last bar

	BoxPadding  float64 // fraction of the cluster's MA span
	PlotPadding float64 // fraction of the window span, mirrors chart margins
	MinBoxDim   float64

	MinClusterWidth      int
	FallbackClusterWidth int

	LongClass  int
	ShortClass int
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		MAPeriods:            [3]int{20, 60, 120},
		AdhesionThresholdPct: 0.5,
		DensityWindow:        5,
		CrossThreshold:       4,
		StrictFilter:         true,
		MinMAConfirm:         4,
		UseMomentumFilter:    true,
		MomentumConfirmBars:  3,
		MomentumThreshold:    80,
		MomentumLength:       50,
		UseAlignmentFilter:   true,
		UseCandlePower:       true,
		PowerRatio:           75,
		Stride:               1,
		WindowSize:           60,
		SignalLag:            2,
		BoxPadding:           0.15,
		PlotPadding:          0.05,
		MinBoxDim:            0.01,
		MinClusterWidth:      5,
		FallbackClusterWidth: 30,
		LongClass:            0,
		ShortClass:           1,
	}
}

// Option mutates a Config under construction.
type Option func(*Config)

// New builds a validated Config from the defaults and opts.
func New(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and orderings.
func (c Config) Validate() error {
	for i, p := range c.MAPeriods {
		if p < 1 {
			return fmt.Errorf("%w: ma period %d must be >= 1", ErrInvalidConfig, i)
		}
	}
	if c.MAPeriods[0] >= c.MAPeriods[1] || c.MAPeriods[1] >= c.MAPeriods[2] {
		return fmt.Errorf("%w: ma periods must be strictly increasing", ErrInvalidConfig)
	}
	if c.AdhesionThresholdPct < 0 {
		return fmt.Errorf("%w: adhesion threshold must be >= 0", ErrInvalidConfig)
	}
	if c.DensityWindow < 1 || c.CrossThreshold < 0 {
		return fmt.Errorf("%w: density window must be >= 1 and threshold >= 0", ErrInvalidConfig)
	}
	if c.MinMAConfirm < 0 || c.MinMAConfirm > 6 {
		return fmt.Errorf("%w: min ma confirm must be in [0,6]", ErrInvalidConfig)
	}
	if c.MomentumConfirmBars < 0 || c.MomentumLength < 1 || c.MomentumThreshold < 0 {
		return fmt.Errorf("%w: momentum window/length/threshold out of range", ErrInvalidConfig)
	}
	if c.PowerRatio < 0 || c.PowerRatio > 100 {
		return fmt.Errorf("%w: power ratio must be in [0,100]", ErrInvalidConfig)
	}
	if c.Stride < 1 || c.WindowSize < 2 || c.SignalLag < 0 {
		return fmt.Errorf("%w: stride >= 1, window >= 2, lag >= 0 required", ErrInvalidConfig)
	}
	if c.SignalLag >= c.WindowSize {
		return fmt.Errorf("%w: signal lag must be smaller than window size", ErrInvalidConfig)
	}
	if c.BoxPadding < 0 || c.PlotPadding < 0 {
		return fmt.Errorf("%w: paddings must be >= 0", ErrInvalidConfig)
	}
	if c.MinBoxDim <= 0 || c.MinBoxDim > 1 {
		return fmt.Errorf("%w: min box dimension must be in (0,1]", ErrInvalidConfig)
	}
	if c.MinClusterWidth < 0 || c.FallbackClusterWidth < 1 {
		return fmt.Errorf("%w: cluster widths out of range", ErrInvalidConfig)
	}
	if c.LongClass < 0 || c.ShortClass < 0 {
		return fmt.Errorf("%w: class ids must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Periods returns the indicator periods implied by the config.
func (c Config) Periods() indicators.Periods {
	return indicators.Periods{MA: c.MAPeriods, OscLength: c.MomentumLength}
}

// ClassFor maps a signal direction to its label class.
func (c Config) ClassFor(long bool) int {
	if long {
		return c.LongClass
	}
	return c.ShortClass
}

// WithMAPeriods sets the short, mid and long periods.
func WithMAPeriods(short, mid, long int) Option {
	return func(c *Config) {
		c.MAPeriods = [3]int{short, mid, long}
	}
}

// WithAdhesionThreshold sets the adhesion tolerance in percent of close.
func WithAdhesionThreshold(pct float64) Option {
	return func(c *Config) {
		c.AdhesionThresholdPct = pct
	}
}

// WithDensity sets the crossover density window and threshold.
func WithDensity(window, threshold int) Option {
	return func(c *Config) {
		c.DensityWindow = window
		c.CrossThreshold = threshold
	}
}

// WithPositionFilter sets strict mode and the lenient minimum.
func WithPositionFilter(strict bool, minConfirm int) Option {
	return func(c *Config) {
		c.StrictFilter = strict
		c.MinMAConfirm = minConfirm
	}
}

// WithMomentum configures the momentum filter.
func WithMomentum(enabled bool, confirmBars int, threshold float64, length int) Option {
	return func(c *Config) {
		c.UseMomentumFilter = enabled
		c.MomentumConfirmBars = confirmBars
		c.MomentumThreshold = threshold
		c.MomentumLength = length
	}
}

// WithAlignment toggles the MA alignment filter.
func WithAlignment(enabled bool) Option {
	return func(c *Config) {
		c.UseAlignmentFilter = enabled
	}
}

// WithCandlePower configures the candle power filter.
func WithCandlePower(enabled bool, ratio float64) Option {
	return func(c *Config) {
		c.UseCandlePower = enabled
		c.PowerRatio = ratio
	}
}

// WithScan sets stride, output window size and signal lag.
func WithScan(stride, window, lag int) Option {
	return func(c *Config) {
		c.Stride = stride
		c.WindowSize = window
		c.SignalLag = lag
	}
}

// WithBox sets label geometry paddings and the minimum dimension.
func WithBox(padding, plotPadding, minDim float64) Option {
	return func(c *Config) {
		c.BoxPadding = padding
		c.PlotPadding = plotPadding
		c.MinBoxDim = minDim
	}
}

// WithCluster sets the minimum cluster width and the fallback window width.
func WithCluster(minWidth, fallbackWidth int) Option {
	return func(c *Config) {
		c.MinClusterWidth = minWidth
		c.FallbackClusterWidth = fallbackWidth
	}
}

// WithClasses sets label class ids; equal ids give a single undifferentiated class.
func WithClasses(long, short int) Option {
	return func(c *Config) {
		c.LongClass = long
		c.ShortClass = short
	}
}
