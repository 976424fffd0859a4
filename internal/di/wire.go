//go:build wireinject
// +build wireinject

package di

import (
	"MarketLens/pkg/config"
	"MarketLens/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient services
		ProvideLogger,
		ProvideMetrics,

		// Storage and infrastructure clients
		ProvideStore,
		ProvideSeriesStore,
		ProvideCompanyStore,
		ProvideCache,
		ProvideEventPublisher,
		ProvideMarketData,

		// Use cases
		ProvideWindowParams,
		ProvideReportParams,
		ProvideIngestUseCase,
		ProvideScanUseCase,
		ProvideDailyReportUseCase,
		ProvideTrailingReportUseCase,

		// Background work
		ProvideJobs,
		ProvideQueueService,
		ProvideQueueConsumer,
		ProvideScheduler,

		// HTTP API and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
