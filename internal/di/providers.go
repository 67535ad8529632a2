package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/application/services"
	"graphmind/internal/config"
	"graphmind/internal/infrastructure/messaging/eventbridge"
	"graphmind/internal/infrastructure/messaging/logpub"
	"graphmind/internal/infrastructure/observability"
	"graphmind/internal/infrastructure/store/cache"
	"graphmind/internal/infrastructure/store/dynamodb"
	"graphmind/internal/infrastructure/store/graphql"
	"graphmind/internal/infrastructure/store/memory"
	"graphmind/internal/infrastructure/store/resilience"
	"graphmind/internal/infrastructure/store/sqlite"
	"graphmind/internal/layout"
	"graphmind/internal/render"
)

// BaseStore is the undecorated store selected by Sync.Source.
type BaseStore interface {
	ports.GraphStore
}

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(cfg.Environment, cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideCollector creates the metrics collector, or nil when metrics are
// disabled.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracerProvider initializes tracing.
func ProvideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, cfg.Environment, cfg.Tracing)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// ProvideBaseStore opens the store named by cfg.Sync.Source.
func ProvideBaseStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (BaseStore, func(), error) {
	src := cfg.Sync
	switch src.Source {
	case config.SourceMemory:
		s := memory.NewStore()
		if src.Memory.SeedDemo {
			if err := memory.SeedDemo(ctx, s); err != nil {
				return nil, nil, fmt.Errorf("seeding demo graph: %w", err)
			}
		}
		return s, func() {}, nil

	case config.SourceGraphQL:
		s := graphql.NewClient(src.GraphQL.Endpoint, logger.Named("graphql"),
			graphql.WithHeaders(src.GraphQL.Headers),
			graphql.WithTitleFilter(src.GraphQL.TitleFilter),
		)
		return s, func() {}, nil

	case config.SourceSQLite:
		s, err := sqlite.Open(src.SQLite.Path, logger.Named("sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close SQLite store", zap.Error(err))
			}
		}, nil

	case config.SourceDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, src.DynamoDB.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if src.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(src.DynamoDB.Endpoint)
			}
		})
		return dynamodb.NewStore(client, src.DynamoDB.TableName, src.DynamoDB.GraphID, logger.Named("dynamodb")), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown sync source %q", src.Source)
}

// ProvideCache creates the fetch cache, or nil when caching is off.
func ProvideCache(cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.Cache.Provider {
	case "memory":
		return cache.NewMemoryCache(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return cache.NewRedisCache(client), func() { _ = client.Close() }, nil
	}
	return nil, func() {}, nil
}

// ProvideGraphStore decorates base. Calls flow through the cache, then
// retries and the breaker, then tracing, so every attempt gets its own span.
func ProvideGraphStore(
	base BaseStore,
	c cache.Cache,
	tp *observability.TracerProvider,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) ports.GraphStore {
	var store ports.GraphStore = observability.NewInstrumentedStore(base, tp.Tracer(), collector)
	store = resilience.NewStore(store, cfg.Infrastructure, logger.Named("resilience"))
	if c != nil {
		store = cache.NewStore(store, c, cfg.Cache.Redis.KeyPrefix+":", cfg.Cache.TTL, logger.Named("cache"))
	}
	return store
}

// ProvideEventPublisher creates the publisher named by cfg.Events.Provider,
// or nil when events are off.
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	switch cfg.Events.Provider {
	case "log":
		return logpub.NewPublisher(logger.Named("events")), nil
	case "eventbridge":
		awsCfg, err := loadAWSConfig(ctx, cfg.Sync.DynamoDB.Region)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return eventbridge.NewPublisher(
			awseventbridge.NewFromConfig(awsCfg),
			cfg.Events.EventBusName,
			cfg.Events.Source,
			cfg.Events.BatchSize,
			logger.Named("eventbridge"),
		), nil
	}
	return nil, nil
}

// ProvideSimulation creates the layout simulation.
func ProvideSimulation(cfg *config.Config, collector *observability.Collector, logger *zap.Logger) (*layout.Simulation, func()) {
	opts := []layout.Option{layout.WithLogger(logger.Named("layout"))}
	if collector != nil {
		opts = append(opts, layout.WithObserver(collector))
	}
	sim := layout.New(cfg.Layout, opts...)
	return sim, sim.Stop
}

// ProvideReconciler creates the reconciler painting onto painter.
func ProvideReconciler(cfg *config.Config, painter render.Painter, collector *observability.Collector, logger *zap.Logger) *render.Reconciler {
	opts := []render.Option{render.WithLogger(logger.Named("render"))}
	if painter != nil {
		opts = append(opts, render.WithPainter(painter))
	}
	if collector != nil {
		opts = append(opts, render.WithObserver(collector))
	}
	return render.NewReconciler(cfg.Render, opts...)
}

// ProvideGraphViewService creates the service.
func ProvideGraphViewService(
	cfg *config.Config,
	store ports.GraphStore,
	publisher ports.EventPublisher,
	sim *layout.Simulation,
	reconciler *render.Reconciler,
	logger *zap.Logger,
) *services.GraphViewService {
	return services.NewGraphViewService(cfg, store, publisher, sim, reconciler, logger.Named("service"))
}
