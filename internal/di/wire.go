//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"graphmind/internal/config"
	"graphmind/internal/render"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideCollector,
	ProvideTracerProvider,
	ProvideBaseStore,
	ProvideCache,
	ProvideGraphStore,
	ProvideEventPublisher,
	ProvideSimulation,
	ProvideReconciler,
	ProvideGraphViewService,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. painter receives
// render diffs; hosts without a retained surface pass render.NopPainter{}.
func InitializeContainer(ctx context.Context, cfg *config.Config, painter render.Painter) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
