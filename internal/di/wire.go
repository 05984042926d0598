//go:build wireinject
// +build wireinject

package di

import (
	"ExFuse/pkg/config"
	"ExFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideResponseCache,

		// Repositories
		ProvideSignalStore,
		ProvideSignalPublisher,

		// Exchange adapters
		ProvideBybitStream,
		ProvideAdapters,

		// Use cases
		ProvideAggregator,
		ProvideAdvancedAnalytics,
		ProvideSignalMonitor,

		// HTTP handlers and application server
		ProvideHandlers,
		ProvideApp,
	)
	return &server.App{}, nil
}
