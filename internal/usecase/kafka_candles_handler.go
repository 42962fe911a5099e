package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	pkgkafka "PatternPull/pkg/kafka"
	"PatternPull/pkg/util"
)

// KafkaCandlesHandler feeds candles from the ingest topic to the live detector.
type KafkaCandlesHandler struct {
	topic   string
	live    *LiveDetector
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, live *LiveDetector, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, live: live, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// candleMessage is {symbol, t, o, h, l, c, v}; t is RFC3339 or epoch seconds/millis.
type candleMessage struct {
	Symbol string          `json:"symbol"`
	T      json.RawMessage `json:"t"`
	O      float64         `json:"o"`
	H      float64         `json:"h"`
	L      float64         `json:"l"`
	C      float64         `json:"c"`
	V      float64         `json:"v"`
}

// parseBucket accepts an RFC3339 string or epoch seconds/milliseconds,
// quoted or not.
func parseBucket(raw json.RawMessage) (time.Time, error) {
	s := strings.Trim(string(raw), `"`)
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("candle time %s: unrecognised format", raw)
	}
	return t, nil
}

func decodeCandle(b []byte) (models.Candle, error) {
	var m candleMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return models.Candle{}, fmt.Errorf("decode candle: %w", err)
	}
	t, err := parseBucket(m.T)
	if err != nil {
		return models.Candle{}, err
	}
	return models.Candle{Bucket: t, Symbol: util.NormalizeSymbol(m.Symbol), Open: m.O, High: m.H, Low: m.L, Close: m.C, Volume: m.V}, nil
}

func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	c, err := decodeCandle(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	start := time.Now()
	if _, err := h.live.OnCandle(ctx, c); err != nil {
		h.metrics.RecordError("consumer_candle")
		return err
	}
	h.metrics.RecordLatency("live_step_seconds", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
