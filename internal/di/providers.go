package di

import (
	"context"
	"fmt"
	"time"

	"PatternPull/internal/domain/repository"
	"PatternPull/internal/handler/api"
	internalrepo "PatternPull/internal/repository"
	"PatternPull/internal/service/okx"
	"PatternPull/internal/service/ratelimit"
	"PatternPull/internal/services/detector"
	"PatternPull/internal/services/labels"
	"PatternPull/internal/usecase"
	"PatternPull/pkg/cache"
	pkgch "PatternPull/pkg/clickhouse"
	"PatternPull/pkg/config"
	xhttp "PatternPull/pkg/http"
	pkgkafka "PatternPull/pkg/kafka"
	applogger "PatternPull/pkg/logger"
	"PatternPull/pkg/metrics"
	"PatternPull/pkg/queue"
	"PatternPull/pkg/server"
)

// ProvideLogger creates the root logger. With a producer and digest enabled,
// error entries are aggregated and published to the digest topic; child
// loggers share the digest, so it is attached before anything derives one.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.Digest.Enabled {
		l.AttachDigest(&applogger.DigestConfig{
			Interval:  cfg.Log.Digest.Interval,
			Threshold: cfg.Log.Digest.Threshold,
			Topic:     cfg.Log.Digest.Topic,
			Publisher: producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideDetectorConfig(cfg *config.Config) (detector.Config, error) {
	return DetectorConfig(cfg.Detector)
}

// ProvideClickHouseClient creates a ClickHouse client and the database.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+cfg.ClickHouse.Database); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse database: %w", err)
	}
	return client, nil
}

func tableName(cfg *config.Config, table string) string {
	return cfg.ClickHouse.Database + "." + table
}

// ProvideCandleStore creates the candles table repository.
func ProvideCandleStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHCandleStore, error) {
	store := internalrepo.NewCHCandleStore(ch, tableName(cfg, cfg.ClickHouse.CandlesTable), l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("candles schema: %w", err)
	}
	return store, nil
}

// ProvideSignalStorage creates the signals table repository.
func ProvideSignalStorage(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.SignalStorage, error) {
	store := internalrepo.NewCHSignalStorage(ch, tableName(cfg, cfg.ClickHouse.SignalsTable), l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signals schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer; nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher publishes signals to Kafka; nil without a producer.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideCandlePublisher forwards live candles to Kafka; nil without a producer.
func ProvideCandlePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.CandlePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaCandlePublisher(producer, cfg.Kafka.CandlesTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.TraceHook{})
	return consumer, nil
}

// ProvideRedisCache connects to Redis; the client also backs the job queue.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 4*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideScanCache layers a short in-process cache over Redis.
func ProvideScanCache(rc *cache.RedisCache, cfg *config.Config, l *applogger.Logger) repository.ScanCache {
	layered := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(1000),
		cache.WithLayeredMemoryTTL(30*time.Second),
	)
	return internalrepo.NewScanCache(layered, cfg.Scanner.CacheTTL, l)
}

// ProvideOKXClient creates the rate-limited OKX REST client.
func ProvideOKXClient(cfg *config.Config, l *applogger.Logger) *okx.RESTClient {
	httpClient := xhttp.NewClient(xhttp.WithTimeout(10*time.Second), xhttp.WithRetries(2, 500*time.Millisecond))
	limiter := ratelimit.New(cfg.OKX.RateLimit.Capacity, cfg.OKX.RateLimit.Refill)
	return okx.NewRESTClient(cfg.OKX.RestURL, httpClient, limiter, l)
}

// ProvideCandleSource reads ClickHouse first and backfills from OKX.
func ProvideCandleSource(store *internalrepo.CHCandleStore, rest *okx.RESTClient, l *applogger.Logger) repository.CandleSource {
	return internalrepo.NewFallbackSource(store, rest, store, l)
}

// ProvideLabelWriter returns nil when no label dir is configured.
func ProvideLabelWriter(cfg *config.Config) (*labels.Writer, error) {
	if cfg.Scanner.LabelDir == "" {
		return nil, nil
	}
	classes := labels.DirectionalClasses
	if cfg.Detector.SingleClass {
		classes = labels.SingleClass
	}
	w, err := labels.NewWriter(cfg.Scanner.LabelDir, classes)
	if err != nil {
		return nil, err
	}
	if _, err := w.WriteManifest(); err != nil {
		return nil, err
	}
	return w, nil
}

// ProvideScanUseCase creates the scan use case.
func ProvideScanUseCase(
	source repository.CandleSource,
	detCfg detector.Config,
	m repository.Metrics,
	l *applogger.Logger,
	storage repository.SignalStorage,
	publisher repository.SignalPublisher,
	scanCache repository.ScanCache,
	lw *labels.Writer,
	cfg *config.Config,
) *usecase.ScanUseCase {
	return usecase.NewScanUseCase(source, detCfg, m, l,
		usecase.WithSignalStorage(storage),
		usecase.WithSignalPublisher(publisher),
		usecase.WithScanCache(scanCache),
		usecase.WithLabelWriter(lw),
		usecase.WithDefaultLimit(cfg.Scanner.DefaultLimit),
	)
}

// ProvideQueue creates the Redis scan job queue.
func ProvideQueue(rc *cache.RedisCache, cfg *config.Config, l *applogger.Logger) *queue.RedisQueue {
	return queue.NewRedisQueue(l, queue.Config{
		Workers:     cfg.Redis.Queue.Workers,
		RetryLimit:  cfg.Redis.Queue.MaxRetries,
		RetryDelay:  cfg.Redis.Queue.RetryDelay,
		PollTimeout: cfg.Redis.Queue.PollTimeout,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue:"+cfg.Redis.Queue.Name))
}

func ProvideScanJob(uc *usecase.ScanUseCase) *usecase.ScanJob {
	return usecase.NewScanJob(uc)
}

// ProvideLiveDetector creates the per-symbol streaming detector.
func ProvideLiveDetector(
	detCfg detector.Config,
	cfg *config.Config,
	storage repository.SignalStorage,
	publisher repository.SignalPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.LiveDetector {
	return usecase.NewLiveDetector(detCfg, repository.NormalizeTimeframe(cfg.OKX.Bar), storage, publisher, m, l)
}

// ProvideKafkaCandlesHandler handles the candles topic.
func ProvideKafkaCandlesHandler(cfg *config.Config, live *usecase.LiveDetector, m repository.Metrics) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, live, m)
}

// ProvideCandleCollector creates the OKX live collector; nil when okx is disabled.
func ProvideCandleCollector(
	cfg *config.Config,
	store *internalrepo.CHCandleStore,
	publisher repository.CandlePublisher,
	live *usecase.LiveDetector,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.CandleCollector {
	if !cfg.OKX.Enabled {
		return nil
	}
	bar := repository.NormalizeTimeframe(cfg.OKX.Bar)
	stream := okx.NewStreamClient(cfg.OKX.WebSocketURL, cfg.OKX.Symbols, bar, cfg.OKX.ReconnectDelay, cfg.OKX.PingInterval, l)
	return usecase.NewCandleCollector(stream, store, publisher, live, bar, m, l)
}

// ProvideScanHandler creates the HTTP API handler with dependency checks.
func ProvideScanHandler(
	l *applogger.Logger,
	uc *usecase.ScanUseCase,
	q *queue.RedisQueue,
	cfg *config.Config,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	collector *usecase.CandleCollector,
) *api.ScanHandler {
	checks := map[string]api.HealthCheck{
		"clickhouse": ch.Health,
		"redis":      rc.Health,
	}
	if collector != nil {
		checks["okx_stream"] = func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}
	}
	rl := ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.Refill)
	return api.NewScanHandler(l, uc, q, rl, checks)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.ScanHandler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp assembles the application from its components.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	candles *usecase.KafkaCandlesHandler,
	q *queue.RedisQueue,
	job *usecase.ScanJob,
	collector *usecase.CandleCollector,
	live *usecase.LiveDetector,
	source repository.CandleSource,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) *server.App {
	opts := []server.Option{
		server.WithQueue(q, job),
		server.WithCloser("clickhouse", ch.Close),
		server.WithCloser("redis", rc.Close),
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka_producer", producer.Close))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, candles))
	}
	if collector != nil {
		opts = append(opts, server.WithCollector(collector, func(ctx context.Context) error {
			return live.WarmUp(ctx, source, cfg.OKX.Symbols)
		}))
	}
	return server.New(cfg, l, srv, opts...)
}
