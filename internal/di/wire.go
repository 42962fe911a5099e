//go:build wireinject
// +build wireinject

package di

import (
	"PatternPull/pkg/config"
	"PatternPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideDetectorConfig,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideOKXClient,
		ProvideQueue,

		// Repositories
		ProvideCandleStore,
		ProvideSignalStorage,
		ProvideSignalPublisher,
		ProvideCandlePublisher,
		ProvideScanCache,
		ProvideCandleSource,
		ProvideLabelWriter,

		// Use cases
		ProvideScanUseCase,
		ProvideScanJob,
		ProvideLiveDetector,
		ProvideKafkaCandlesHandler,
		ProvideCandleCollector,

		// Transport
		ProvideScanHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
