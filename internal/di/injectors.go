//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"pickd/internal"
	"pickd/internal/controllers"
	"pickd/internal/providers"
	"pickd/internal/services"
	"pickd/internal/store"
	"pickd/internal/store/interfaces"
	"pickd/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewLockProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		store.NewEventStore,
		store.NewZstdCompressor,
		store.NewFileManager,
		store.NewScheduler,
		services.NewEventService,
		wire.Bind(new(providers.StatsSource), new(store.EventStoreInterface)),
		wire.Bind(new(interfaces.SweeperInterface), new(services.EventServiceInterface)),
		controllers.NewApiController,
		controllers.NewCommandController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
