package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/internal/service/ratelimit"
	"PatternPull/internal/usecase"
	xhttp "PatternPull/pkg/http"
	xlogger "PatternPull/pkg/logger"
	"PatternPull/pkg/queue"
	"PatternPull/pkg/util"
)

// JobQueue enqueues scan jobs and reports their state.
type JobQueue interface {
	queue.Publisher
	Status(ctx context.Context, id string) (*queue.Status, error)
}

// HealthCheck reports one dependency's health.
type HealthCheck func(ctx context.Context) error

// ScanHandler serves the scan API.
type ScanHandler struct {
	logger *xlogger.Logger
	scans  *usecase.ScanUseCase
	jobs   JobQueue
	rl     *ratelimit.Limiter
	checks map[string]HealthCheck
}

func init() {
	err := xhttp.RegisterStringValidation("timeframe", "must be one of 1m, 5m, 15m, 1H, 4H", func(s string) bool {
		_, ok := domrepo.ParseTimeframe(s)
		return ok
	})
	if err != nil {
		panic(err)
	}
}

func NewScanHandler(logger *xlogger.Logger, scans *usecase.ScanUseCase, jobs JobQueue, rl *ratelimit.Limiter, checks map[string]HealthCheck) *ScanHandler {
	return &ScanHandler{logger: logger, scans: scans, jobs: jobs, rl: rl, checks: checks}
}

func (h *ScanHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)

	limited := g.Group("", h.rateLimit)
	limited.GET("/scan", h.Scan)
	limited.GET("/signals", h.Signals)
	limited.POST("/scan/jobs", h.EnqueueJobs)
	limited.GET("/scan/jobs/:id", h.JobStatus)
}

// rateLimit applies a token bucket per client IP.
func (h *ScanHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rl != nil && !h.rl.Allow(c.RealIP()) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "Too many requests", http.StatusTooManyRequests))
		}
		return next(c)
	}
}

// parseTime returns the zero time for empty input; the request's datetime
// tag has already rejected anything else unparseable.
func parseTime(s string) time.Time {
	return util.ParseTimeDefault(s, time.Time{})
}

// toAppError maps use case errors to HTTP errors; anything else stays a 500.
func toAppError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidParams):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNotEnoughCandles), errors.Is(err, usecase.ErrInvalidCandle):
		return xhttp.NewAppError("ERR_UNPROCESSABLE", "", err.Error(), http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, usecase.ErrNoCandles), errors.Is(err, queue.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrScanInProgress):
		return xhttp.NewAppError("ERR_CONFLICT", "", "A scan for this series is already running", http.StatusConflict).WithError(err)
	}
	return err
}

// Scan runs the detector over one series.
func (h *ScanHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sum, err := h.scans.Scan(c.Request().Context(), usecase.ScanParams{
		Symbol:  util.NormalizeSymbol(req.Symbol),
		TF:      domrepo.NormalizeTimeframe(req.TF),
		Limit:   req.Limit,
		From:    parseTime(req.From),
		To:      parseTime(req.To),
		Refresh: req.Refresh,
	})
	if err != nil {
		h.logger.Error("scan usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, sum)
}

// Signals lists stored signals, newest first.
func (h *ScanHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.scans.Signals(c.Request().Context(), domrepo.SignalQuery{
		Symbol: util.NormalizeSymbol(req.Symbol),
		From:   parseTime(req.From),
		To:     parseTime(req.To),
		Limit:  req.Limit,
	})
	if err != nil {
		h.logger.Error("signals query error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if rows == nil {
		rows = []models.SignalEvent{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// EnqueueJobs queues one scan per symbol.
func (h *ScanHandler) EnqueueJobs(c echo.Context) error {
	req := &models.ScanJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("Job queue is not configured"))
	}
	req.TF = string(domrepo.NormalizeTimeframe(req.TF))

	ids, err := usecase.EnqueueScans(c.Request().Context(), h.jobs, *req)
	if err != nil {
		h.logger.Error("enqueue scans error", xlogger.Int("queued", len(ids)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{"jobs": ids})
}

func (h *ScanHandler) JobStatus(c echo.Context) error {
	req := &models.JobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("Job queue is not configured"))
	}
	st, err := h.jobs.Status(c.Request().Context(), req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, st)
}

// Health runs every dependency check; any failure makes the response 503.
func (h *ScanHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}
