package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/internal/service/ratelimit"
	"PatternPull/internal/services/detector"
	"PatternPull/internal/usecase"
	xhttp "PatternPull/pkg/http"
	xlogger "PatternPull/pkg/logger"
	"PatternPull/pkg/queue"
)

type stubSource struct{ n int }

func (s stubSource) series(symbol string, n int) []models.Candle {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := 100 + 5*math.Sin(float64(i)/7)
		out[i] = models.Candle{Bucket: t0.Add(time.Duration(i) * 5 * time.Minute), Symbol: symbol, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return out
}

func (s stubSource) GetCandles(_ context.Context, symbol string, _, _ time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	return s.series(symbol, s.n), nil
}

func (s stubSource) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	if n > s.n {
		n = s.n
	}
	return s.series(symbol, n), nil
}

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)     {}
func (nopMetrics) RecordScan(string)               {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastClose(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

type stubQueue struct {
	enqueued []string
}

func (q *stubQueue) Enqueue(_ context.Context, _ string, payload interface{}) (string, error) {
	p := payload.(models.ScanJobPayload)
	q.enqueued = append(q.enqueued, p.Symbol+"/"+p.TF)
	return "3f0c6a4e-8a1e-4c55-9d0b-0b9f4c1a2b3c", nil
}

func (q *stubQueue) Status(_ context.Context, id string) (*queue.Status, error) {
	if id == "3f0c6a4e-8a1e-4c55-9d0b-0b9f4c1a2b3c" {
		return &queue.Status{ID: id, State: queue.StateDone, Attempts: 1}, nil
	}
	return nil, queue.ErrNotFound
}

func newTestServer(t *testing.T, candles int, rl *ratelimit.Limiter, checks map[string]HealthCheck) (*echo.Echo, *stubQueue) {
	t.Helper()
	uc := usecase.NewScanUseCase(stubSource{n: candles}, detector.DefaultConfig(), nopMetrics{}, nil)
	q := &stubQueue{}
	e := echo.New()
	NewScanHandler(xlogger.Nop(), uc, q, rl, checks).RegisterRoutes(e)
	return e, q
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestScanEndpoint(t *testing.T) {
	e, _ := newTestServer(t, 800, nil, nil)

	rec := do(e, http.MethodGet, "/api/scan?symbol=BTC-USDT&tf=5m", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data models.ScanSummary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Symbol != "BTC-USDT" || resp.Data.Bars != 500 || resp.Data.Timeframe != "5m" {
		t.Fatalf("summary = %+v", resp.Data)
	}

	for _, target := range []string{
		"/api/scan",
		"/api/scan?symbol=BTC-USDT&tf=7m",
		"/api/scan?symbol=BTC-USDT&limit=20000",
		"/api/scan?symbol=BTC-USDT&from=yesterday",
	} {
		if rec := do(e, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestScanEndpointShortSeries(t *testing.T) {
	e, _ := newTestServer(t, 50, nil, nil)
	if rec := do(e, http.MethodGet, "/api/scan?symbol=BTC-USDT", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSignalsWithoutStorage(t *testing.T) {
	e, _ := newTestServer(t, 800, nil, nil)
	if rec := do(e, http.MethodGet, "/api/signals?symbol=BTC-USDT", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestScanJobsEndpoints(t *testing.T) {
	e, q := newTestServer(t, 800, nil, nil)

	rec := do(e, http.MethodPost, "/api/scan/jobs", `{"symbols":["btc-usdt","ETH-USDT"],"tf":"1h"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if len(q.enqueued) != 2 || q.enqueued[0] != "BTC-USDT/1H" {
		t.Fatalf("enqueued = %v", q.enqueued)
	}
	if rec := do(e, http.MethodPost, "/api/scan/jobs", `{"symbols":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty symbols: status = %d", rec.Code)
	}

	if rec := do(e, http.MethodGet, "/api/scan/jobs/3f0c6a4e-8a1e-4c55-9d0b-0b9f4c1a2b3c", ""); rec.Code != http.StatusOK {
		t.Fatalf("known job: status = %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/scan/jobs/9b2d3c1e-0000-4000-8000-000000000000", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job: status = %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/scan/jobs/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	e, _ := newTestServer(t, 800, ratelimit.New(2, 0.001), nil)
	for i := 0; i < 2; i++ {
		if rec := do(e, http.MethodGet, "/api/scan?symbol=BTC-USDT", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if rec := do(e, http.MethodGet, "/api/scan?symbol=BTC-USDT", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	// health is not limited
	if rec := do(e, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, 800, nil, map[string]HealthCheck{
		"clickhouse": func(context.Context) error { return nil },
		"redis":      func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec := do(e, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp xhttp.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	data, _ := resp.Data.(map[string]interface{})
	if data["clickhouse"] != "ok" || data["redis"] != "dial tcp: refused" {
		t.Fatalf("data = %v", resp.Data)
	}
}

func TestToAppError(t *testing.T) {
	cases := map[error]int{
		usecase.ErrInvalidParams:    http.StatusBadRequest,
		usecase.ErrNoCandles:        http.StatusNotFound,
		usecase.ErrNotEnoughCandles: http.StatusUnprocessableEntity,
		usecase.ErrScanInProgress:   http.StatusConflict,
		queue.ErrNotFound:           http.StatusNotFound,
	}
	for err, status := range cases {
		var appErr *xhttp.AppError
		if !errors.As(toAppError(err), &appErr) || appErr.Status != status {
			t.Fatalf("%v: got %v", err, toAppError(err))
		}
	}
	plain := errors.New("boom")
	if toAppError(plain) != plain {
		t.Fatalf("unknown errors pass through")
	}
}
