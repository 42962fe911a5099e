package di

import (
	"errors"
	"reflect"
	"testing"

	"PatternPull/internal/services/detector"
	"PatternPull/pkg/config"
)

func parseDetector(t *testing.T, section string) config.DetectorConfig {
	t.Helper()
	c, err := config.Parse([]byte("environment: test\nclickhouse: {host: h}\nredis: {addr: a}\n" + section))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c.Detector
}

func TestDetectorConfigDefaults(t *testing.T) {
	got, err := DetectorConfig(parseDetector(t, ""))
	if err != nil {
		t.Fatalf("DetectorConfig: %v", err)
	}
	if !reflect.DeepEqual(got, detector.DefaultConfig()) {
		t.Fatalf("defaults differ:\n got %+v\nwant %+v", got, detector.DefaultConfig())
	}
}

func TestDetectorConfigOverrides(t *testing.T) {
	got, err := DetectorConfig(parseDetector(t, `
detector:
  ma_periods: [10, 30, 90]
  strict_filter: false
  use_candle_power: false
  window_size: 40
  single_class: true
`))
	if err != nil {
		t.Fatalf("DetectorConfig: %v", err)
	}
	if got.MAPeriods != [3]int{10, 30, 90} || got.StrictFilter || got.UseCandlePower || got.WindowSize != 40 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if !got.UseMomentumFilter {
		t.Fatalf("omitted switch should keep its default")
	}
	if got.ShortClass != 0 {
		t.Fatalf("single_class should map SHORT to class 0")
	}
}

func TestDetectorConfigRejectsShortPeriods(t *testing.T) {
	if _, err := DetectorConfig(config.DetectorConfig{MAPeriods: []int{20, 60}}); !errors.Is(err, detector.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
