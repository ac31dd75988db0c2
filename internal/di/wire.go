//go:build wireinject
// +build wireinject

package di

import (
	"OptPull/pkg/config"
	"OptPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,

		// Repositories
		ProvidePersister,
		ProvideEventSink,
		ProvideRuleSource,

		// Domain services
		ProvideSpotFeed,
		ProvideStrikeRegistry,
		ProvideScaleController,
		ProvideStrikeService,
		ProvideExpirySelector,
		ProvideBroker,
		ProvideEstimator,

		// Adaptive controllers
		ProvideGuard,
		ProvideMemoryProbe,
		ProvideSignals,
		ProvideClassifier,
		ProvideDetailController,

		// Pipeline and scheduling
		ProvidePipeline,
		ProvideRunner,
		ProvideScheduler,

		// HTTP and application server
		ProvideStatusHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
