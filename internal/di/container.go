// Package di wires a graph view from configuration.
package di

import (
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/application/services"
	"graphmind/internal/config"
	"graphmind/internal/infrastructure/observability"
	"graphmind/internal/layout"
	"graphmind/internal/render"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Collector  *observability.Collector
	Tracing    *observability.TracerProvider
	Store      ports.GraphStore
	Publisher  ports.EventPublisher
	Simulation *layout.Simulation
	Reconciler *render.Reconciler
	Service    *services.GraphViewService
}
