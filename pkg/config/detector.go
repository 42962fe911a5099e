package config

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DetectorConfig is the YAML form of the detector settings.
// Pointers distinguish an explicit false from an omitted switch.
type DetectorConfig struct {
	MAPeriods            []int   `yaml:"ma_periods" default:"[20,60,120]" validate:"len=3,dive,gte=1"`
	AdhesionThresholdPct float64 `yaml:"adhesion_threshold_pct" default:"0.5" validate:"gte=0"`

	DensityWindow  int `yaml:"density_window" default:"5" validate:"gte=1"`
	CrossThreshold int `yaml:"cross_threshold" default:"4" validate:"gte=0"`

	StrictFilter *bool `yaml:"strict_filter" default:"true"`
	MinMAConfirm int   `yaml:"min_ma_confirm" default:"4" validate:"gte=0,lte=6"`

	UseMomentumFilter   *bool   `yaml:"use_momentum_filter" default:"true"`
	MomentumConfirmBars int     `yaml:"momentum_confirm_bars" default:"3" validate:"gte=0"`
	MomentumThreshold   float64 `yaml:"momentum_threshold" default:"80" validate:"gte=0"`
	MomentumLength      int     `yaml:"momentum_length" default:"50" validate:"gte=1"`

	UseAlignmentFilter *bool `yaml:"use_alignment_filter" default:"true"`

	UseCandlePower *bool   `yaml:"use_candle_power" default:"true"`
	PowerRatio     float64 `yaml:"power_ratio" default:"75" validate:"gte=0,lte=100"`

	Stride     int `yaml:"stride" default:"1" validate:"gte=1"`
	WindowSize int `yaml:"window_size" default:"60" validate:"gte=2"`
	SignalLag  int `yaml:"signal_lag" default:"2" validate:"gte=0,ltfield=WindowSize"`

	BoxPadding  float64 `yaml:"box_padding" default:"0.15" validate:"gte=0"`
	PlotPadding float64 `yaml:"plot_padding" default:"0.05" validate:"gte=0"`
	MinBoxDim   float64 `yaml:"min_box_dim" default:"0.01" validate:"gt=0,lte=1"`

	MinClusterWidth      int `yaml:"min_cluster_width" default:"5" validate:"gte=0"`
	FallbackClusterWidth int `yaml:"fallback_cluster_width" default:"30" validate:"gte=1"`

	// single_class collapses LONG and SHORT into class 0
	SingleClass bool `yaml:"single_class"`
}

// Normalize fills omitted fields with defaults and validates the tags.
func (d *DetectorConfig) Normalize() error {
	if err := defaults.Set(d); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}
	if err := validate.Struct(d); err != nil {
		return err
	}
	p := d.MAPeriods
	if p[0] >= p[1] || p[1] >= p[2] {
		return fmt.Errorf("detector.ma_periods must be strictly increasing, got %v", p)
	}
	return nil
}

// Enabled reads an optional switch; nil is off.
func Enabled(b *bool) bool { return b != nil && *b }
