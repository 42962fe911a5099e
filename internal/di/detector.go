package di

import (
	"fmt"

	"PatternPull/internal/services/detector"
	"PatternPull/pkg/config"
)

// DetectorConfig converts the normalized YAML detector section to the
// engine configuration.
func DetectorConfig(d config.DetectorConfig) (detector.Config, error) {
	if len(d.MAPeriods) != 3 {
		return detector.Config{}, fmt.Errorf("%w: need exactly three ma periods", detector.ErrInvalidConfig)
	}
	short := 1
	if d.SingleClass {
		short = 0
	}
	return detector.New(
		detector.WithMAPeriods(d.MAPeriods[0], d.MAPeriods[1], d.MAPeriods[2]),
		detector.WithAdhesionThreshold(d.AdhesionThresholdPct),
		detector.WithDensity(d.DensityWindow, d.CrossThreshold),
		detector.WithPositionFilter(config.Enabled(d.StrictFilter), d.MinMAConfirm),
		detector.WithMomentum(config.Enabled(d.UseMomentumFilter), d.MomentumConfirmBars, d.MomentumThreshold, d.MomentumLength),
		detector.WithAlignment(config.Enabled(d.UseAlignmentFilter)),
		detector.WithCandlePower(config.Enabled(d.UseCandlePower), d.PowerRatio),
		detector.WithScan(d.Stride, d.WindowSize, d.SignalLag),
		detector.WithBox(d.BoxPadding, d.PlotPadding, d.MinBoxDim),
		detector.WithCluster(d.MinClusterWidth, d.FallbackClusterWidth),
		detector.WithClasses(0, short),
	)
}
