package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PatternPull/pkg/config"
	xhttp "PatternPull/pkg/http"
	pkgkafka "PatternPull/pkg/kafka"
	applogger "PatternPull/pkg/logger"
	"PatternPull/pkg/queue"
)

// Collector is a background ingest loop started after the consumers.
type Collector interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// closer releases one infrastructure client on shutdown.
type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server

	consumer *pkgkafka.Consumer
	handlers []pkgkafka.MessageHandler

	queue *queue.RedisQueue
	jobs  []queue.Job

	collector Collector
	warmUp    func(ctx context.Context) error

	closers []closer
}

type Option func(*App)

// WithConsumer runs the Kafka consumer with the given topic handlers.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.handlers = append(a.handlers, handlers...)
	}
}

// WithQueue runs the Redis job workers with the given jobs.
func WithQueue(q *queue.RedisQueue, jobs ...queue.Job) Option {
	return func(a *App) {
		a.queue = q
		a.jobs = append(a.jobs, jobs...)
	}
}

// WithCollector runs the live candle collector. warmUp, if set, runs first.
func WithCollector(c Collector, warmUp func(ctx context.Context) error) Option {
	return func(a *App) {
		a.collector = c
		a.warmUp = warmUp
	}
}

// WithCloser registers a client to close after everything else stopped.
// Closers run in reverse registration order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, closer{name: name, fn: fn}) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	a := &App{cfg: cfg, log: log, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx ends.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.queue != nil {
		for _, j := range a.jobs {
			a.queue.RegisterJob(j)
		}
		if err := a.queue.Start(); err != nil {
			return a.abort(err, "queue start")
		}
		a.log.Info("scan job workers started", applogger.Int("workers", a.cfg.Redis.Queue.Workers))
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			return a.abort(err, "kafka consumer start")
		}
		a.log.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	if a.collector != nil {
		if a.warmUp != nil {
			if err := a.warmUp(runCtx); err != nil {
				a.log.Warn("live warm-up failed, starting cold", applogger.Error(err))
			}
		}
		if err := a.collector.Start(runCtx); err != nil {
			return a.abort(err, "collector start")
		}
		a.log.Info("candle collector started", applogger.Strings("symbols", a.cfg.OKX.Symbols))
	}

	if err := a.httpServer.Start(); err != nil {
		return a.abort(err, "http server start")
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) abort(err error, what string) error {
	a.log.Error(what+" failed", applogger.Error(err))
	if serr := a.shutdown(); serr != nil {
		a.log.Warn("shutdown after failed start", applogger.Error(serr))
	}
	return err
}

// shutdown stops producers of work before the clients they write to.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, err)
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			errs = append(errs, err)
			a.log.Warn("queue stop error", applogger.Error(err))
		}
	}

	// flush pending error digests while the producer is still open
	a.log.DetachDigest()

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, err)
			a.log.Warn("close error", applogger.String("client", c.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
