// Package config provides configuration management for the GraphMind engine
// and its hosts. Configuration is layered (defaults, files, environment) by
// the Loader and can be hot reloaded by the Watcher.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Sync sources
const (
	SourceMemory   = "memory"
	SourceGraphQL  = "graphql"
	SourceSQLite   = "sqlite"
	SourceDynamoDB = "dynamodb"
)

// ============================================================================
// CONFIGURATION STRUCTURE
// ============================================================================

// Config is the complete configuration of a GraphMind process.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment" toml:"environment" validate:"required,oneof=development staging production"`

	Layout         Layout         `yaml:"layout" json:"layout" toml:"layout"`
	Interaction    Interaction    `yaml:"interaction" json:"interaction" toml:"interaction"`
	Render         Render         `yaml:"render" json:"render" toml:"render"`
	Sync           Sync           `yaml:"sync" json:"sync" toml:"sync"`
	Infrastructure Infrastructure `yaml:"infrastructure" json:"infrastructure" toml:"infrastructure"`
	Cache          Cache          `yaml:"cache" json:"cache" toml:"cache"`
	Events         Events         `yaml:"events" json:"events" toml:"events"`
	Server         Server         `yaml:"server" json:"server" toml:"server"`
	Logging        Logging        `yaml:"logging" json:"logging" toml:"logging"`
	Metrics        Metrics        `yaml:"metrics" json:"metrics" toml:"metrics"`
	Tracing        Tracing        `yaml:"tracing" json:"tracing" toml:"tracing"`

	// LoadedFrom lists the sources that contributed to this configuration.
	LoadedFrom []string `yaml:"-" json:"-" toml:"-"`
}

// Layout holds the force simulation parameters.
type Layout struct {
	Width  float64 `yaml:"width" json:"width" toml:"width" validate:"gt=0"`
	Height float64 `yaml:"height" json:"height" toml:"height" validate:"gt=0"`

	CenterX        float64 `yaml:"centerX" json:"centerX" toml:"centerX"`
	CenterY        float64 `yaml:"centerY" json:"centerY" toml:"centerY"`
	CenterStrength float64 `yaml:"centerStrength" json:"centerStrength" toml:"centerStrength" validate:"gte=0,lte=1"`

	// LinkDistance is the rest length of every link.
	LinkDistance float64 `yaml:"linkDistance" json:"linkDistance" toml:"linkDistance" validate:"gt=0"`
	// LinkStrength overrides the degree based default when non-zero.
	LinkStrength   float64 `yaml:"linkStrength" json:"linkStrength" toml:"linkStrength" validate:"gte=0,lte=2"`
	LinkIterations int     `yaml:"linkIterations" json:"linkIterations" toml:"linkIterations" validate:"gte=1,lte=10"`

	// ChargeStrength is negative for repulsion.
	ChargeStrength float64 `yaml:"chargeStrength" json:"chargeStrength" toml:"chargeStrength"`
	DistanceMin    float64 `yaml:"distanceMin" json:"distanceMin" toml:"distanceMin" validate:"gte=0"`
	// DistanceMax of zero means unbounded.
	DistanceMax float64 `yaml:"distanceMax" json:"distanceMax" toml:"distanceMax" validate:"gte=0"`

	AlphaMin      float64 `yaml:"alphaMin" json:"alphaMin" toml:"alphaMin" validate:"gt=0,lt=1"`
	AlphaDecay    float64 `yaml:"alphaDecay" json:"alphaDecay" toml:"alphaDecay" validate:"gt=0,lt=1"`
	VelocityDecay float64 `yaml:"velocityDecay" json:"velocityDecay" toml:"velocityDecay" validate:"gte=0,lte=1"`
	ReheatTarget  float64 `yaml:"reheatTarget" json:"reheatTarget" toml:"reheatTarget" validate:"gte=0,lte=1"`

	TickInterval  time.Duration `yaml:"tickInterval" json:"tickInterval" toml:"tickInterval" validate:"gt=0"`
	InitialRadius float64       `yaml:"initialRadius" json:"initialRadius" toml:"initialRadius" validate:"gt=0"`
	Seed          int64         `yaml:"seed" json:"seed" toml:"seed"`
}

// Interaction holds pointer handling parameters.
type Interaction struct {
	// ClickTolerance is the largest pointer travel that still counts as a click.
	ClickTolerance float64 `yaml:"clickTolerance" json:"clickTolerance" toml:"clickTolerance" validate:"gte=0"`
	ConfirmDeletes bool    `yaml:"confirmDeletes" json:"confirmDeletes" toml:"confirmDeletes"`
}

// Render holds visual reconciliation parameters.
type Render struct {
	OutlineRadius   float64  `yaml:"outlineRadius" json:"outlineRadius" toml:"outlineRadius" validate:"gt=0"`
	OutlineAnchors  int      `yaml:"outlineAnchors" json:"outlineAnchors" toml:"outlineAnchors" validate:"gte=3,lte=64"`
	OutlineVariance float64  `yaml:"outlineVariance" json:"outlineVariance" toml:"outlineVariance" validate:"gte=0,lt=2"`
	MoveEpsilon     float64  `yaml:"moveEpsilon" json:"moveEpsilon" toml:"moveEpsilon" validate:"gte=0"`
	Palette         []string `yaml:"palette" json:"palette" toml:"palette" validate:"min=1,dive,hexcolor"`
	Seed            int64    `yaml:"seed" json:"seed" toml:"seed"`
}

// Sync selects and configures the graph store.
type Sync struct {
	Source          string        `yaml:"source" json:"source" toml:"source" validate:"required,oneof=memory graphql sqlite dynamodb"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" toml:"timeout" validate:"gt=0"`
	LinkConcurrency int           `yaml:"linkConcurrency" json:"linkConcurrency" toml:"linkConcurrency" validate:"gte=1,lte=32"`

	Memory   MemorySource   `yaml:"memory" json:"memory" toml:"memory"`
	GraphQL  GraphQLSource  `yaml:"graphql" json:"graphql" toml:"graphql"`
	SQLite   SQLiteSource   `yaml:"sqlite" json:"sqlite" toml:"sqlite"`
	DynamoDB DynamoDBSource `yaml:"dynamodb" json:"dynamodb" toml:"dynamodb"`
}

// MemorySource configures the in-process store.
type MemorySource struct {
	// SeedDemo preloads a small sample graph.
	SeedDemo bool `yaml:"seedDemo" json:"seedDemo" toml:"seedDemo"`
}

// GraphQLSource configures the remote GraphQL store.
type GraphQLSource struct {
	Endpoint    string            `yaml:"endpoint" json:"endpoint" toml:"endpoint" validate:"omitempty,url"`
	TitleFilter string            `yaml:"titleFilter" json:"titleFilter" toml:"titleFilter"`
	Headers     map[string]string `yaml:"headers" json:"headers" toml:"headers"`
}

// SQLiteSource configures the local file store.
type SQLiteSource struct {
	Path string `yaml:"path" json:"path" toml:"path"`
}

// DynamoDBSource configures the DynamoDB store.
type DynamoDBSource struct {
	TableName string `yaml:"tableName" json:"tableName" toml:"tableName"`
	Region    string `yaml:"region" json:"region" toml:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint" toml:"endpoint" validate:"omitempty,url"`
	GraphID   string `yaml:"graphId" json:"graphId" toml:"graphId"`
}

// Infrastructure holds resilience settings for store calls.
type Infrastructure struct {
	Retry          RetryConfig          `yaml:"retry" json:"retry" toml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker" toml:"circuitBreaker"`
}

// RetryConfig configures exponential backoff.
type RetryConfig struct {
	MaxRetries    int           `yaml:"maxRetries" json:"maxRetries" toml:"maxRetries" validate:"gte=0,lte=10"`
	InitialDelay  time.Duration `yaml:"initialDelay" json:"initialDelay" toml:"initialDelay" validate:"gte=0"`
	MaxDelay      time.Duration `yaml:"maxDelay" json:"maxDelay" toml:"maxDelay" validate:"gte=0"`
	BackoffFactor float64       `yaml:"backoffFactor" json:"backoffFactor" toml:"backoffFactor" validate:"gte=1"`
	JitterFactor  float64       `yaml:"jitterFactor" json:"jitterFactor" toml:"jitterFactor" validate:"gte=0,lte=1"`
}

// CircuitBreakerConfig configures the store circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled" toml:"enabled"`
	FailureRatio     float64       `yaml:"failureRatio" json:"failureRatio" toml:"failureRatio" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"minRequests" json:"minRequests" toml:"minRequests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval" json:"interval" toml:"interval" validate:"gte=0"`
	OpenTimeout      time.Duration `yaml:"openTimeout" json:"openTimeout" toml:"openTimeout" validate:"gt=0"`
	HalfOpenRequests uint32        `yaml:"halfOpenRequests" json:"halfOpenRequests" toml:"halfOpenRequests" validate:"gte=1"`
}

// Cache configures the fetch cache in front of the store.
type Cache struct {
	Provider string        `yaml:"provider" json:"provider" toml:"provider" validate:"oneof=none memory redis"`
	TTL      time.Duration `yaml:"ttl" json:"ttl" toml:"ttl" validate:"gte=0"`
	Redis    RedisConfig   `yaml:"redis" json:"redis" toml:"redis"`
}

// RedisConfig configures the redis cache provider.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr" toml:"addr"`
	Password  string `yaml:"password" json:"password" toml:"password"`
	DB        int    `yaml:"db" json:"db" toml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"keyPrefix" json:"keyPrefix" toml:"keyPrefix"`
}

// Events configures graph mutation event publishing.
type Events struct {
	Provider     string `yaml:"provider" json:"provider" toml:"provider" validate:"oneof=none log eventbridge"`
	EventBusName string `yaml:"eventBusName" json:"eventBusName" toml:"eventBusName"`
	Source       string `yaml:"source" json:"source" toml:"source"`
	BatchSize    int    `yaml:"batchSize" json:"batchSize" toml:"batchSize" validate:"gte=1,lte=10"`
}

// Server configures the HTTP host.
type Server struct {
	Host            string        `yaml:"host" json:"host" toml:"host"`
	Port            int           `yaml:"port" json:"port" toml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout" toml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout" toml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" json:"idleTimeout" toml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout" toml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" json:"allowedOrigins" toml:"allowedOrigins"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `yaml:"level" json:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" toml:"format" validate:"oneof=json console"`
	// Output is a file path, or stderr when empty.
	Output string `yaml:"output" json:"output" toml:"output"`
}

// Metrics configures prometheus collection.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" toml:"namespace"`
	Path      string `yaml:"path" json:"path" toml:"path"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" toml:"enabled"`
	ServiceName string  `yaml:"serviceName" json:"serviceName" toml:"serviceName"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint" toml:"endpoint"`
	SampleRate  float64 `yaml:"sampleRate" json:"sampleRate" toml:"sampleRate" validate:"gte=0,lte=1"`
	Insecure    bool    `yaml:"insecure" json:"insecure" toml:"insecure"`
}

// ============================================================================
// DEFAULTS
// ============================================================================

// Default returns the configuration used when no file or environment
// variable overrides a value.
func Default(env Environment) *Config {
	if env == "" {
		env = Development
	}
	return &Config{
		Environment: env,
		Layout: Layout{
			Width:          800,
			Height:         600,
			CenterX:        400,
			CenterY:        300,
			CenterStrength: 1,
			LinkDistance:   150,
			LinkIterations: 1,
			ChargeStrength: -300,
			DistanceMin:    1,
			AlphaMin:       0.001,
			AlphaDecay:     0.0228,
			VelocityDecay:  0.4,
			ReheatTarget:   0.3,
			TickInterval:   16 * time.Millisecond,
			InitialRadius:  10,
			Seed:           1,
		},
		Interaction: Interaction{
			ClickTolerance: 3,
			ConfirmDeletes: true,
		},
		Render: Render{
			OutlineRadius:   50,
			OutlineAnchors:  16,
			OutlineVariance: 0.25,
			MoveEpsilon:     0.01,
			Palette:         []string{"#8ecae6", "#ffb703", "#90be6d", "#f28482", "#b8b8ff"},
			Seed:            7,
		},
		Sync: Sync{
			Source:          SourceMemory,
			Timeout:         10 * time.Second,
			LinkConcurrency: 4,
			Memory:          MemorySource{SeedDemo: true},
			GraphQL:         GraphQLSource{Endpoint: "http://localhost:8080/graphql"},
			SQLite:          SQLiteSource{Path: "graphmind.db"},
			DynamoDB: DynamoDBSource{
				TableName: "graphmind-" + strings.ToLower(string(env)),
				Region:    "us-east-1",
				GraphID:   "default",
			},
		},
		Infrastructure: Infrastructure{
			Retry: RetryConfig{
				MaxRetries:    3,
				InitialDelay:  100 * time.Millisecond,
				MaxDelay:      2 * time.Second,
				BackoffFactor: 2.0,
				JitterFactor:  0.1,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureRatio:     0.6,
				MinRequests:      5,
				Interval:         30 * time.Second,
				OpenTimeout:      15 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Cache: Cache{
			Provider: "none",
			TTL:      30 * time.Second,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "graphmind",
			},
		},
		Events: Events{
			Provider:     "log",
			EventBusName: "graphmind-events",
			Source:       "graphmind.engine",
			BatchSize:    10,
		},
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "graphmind",
			Path:      "/metrics",
		},
		Tracing: Tracing{
			ServiceName: "graphmind",
			Endpoint:    "localhost:4317",
			SampleRate:  0.1,
			Insecure:    true,
		},
	}
}

// applyEnvironmentDefaults tightens settings that depend on the environment.
func (c *Config) applyEnvironmentDefaults() {
	if c.Environment == Production {
		if c.Logging.Format == "console" {
			c.Logging.Format = "json"
		}
		c.Interaction.ConfirmDeletes = true
	}
	if c.Environment == Development && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
}

// ============================================================================
// VALIDATION
// ============================================================================

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks field constraints and the rules that span several fields.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Layout.DistanceMax > 0 && c.Layout.DistanceMax <= c.Layout.DistanceMin {
		return fmt.Errorf("layout.distanceMax (%v) must exceed layout.distanceMin (%v)",
			c.Layout.DistanceMax, c.Layout.DistanceMin)
	}
	if c.Layout.ReheatTarget > 0 && c.Layout.ReheatTarget <= c.Layout.AlphaMin {
		return fmt.Errorf("layout.reheatTarget (%v) must exceed layout.alphaMin (%v)",
			c.Layout.ReheatTarget, c.Layout.AlphaMin)
	}
	if c.Infrastructure.Retry.MaxDelay < c.Infrastructure.Retry.InitialDelay {
		return fmt.Errorf("infrastructure.retry.maxDelay must not be below initialDelay")
	}

	switch c.Sync.Source {
	case SourceGraphQL:
		if c.Sync.GraphQL.Endpoint == "" {
			return fmt.Errorf("sync.graphql.endpoint is required for the graphql source")
		}
	case SourceSQLite:
		if c.Sync.SQLite.Path == "" {
			return fmt.Errorf("sync.sqlite.path is required for the sqlite source")
		}
	case SourceDynamoDB:
		if c.Sync.DynamoDB.TableName == "" || c.Sync.DynamoDB.GraphID == "" {
			return fmt.Errorf("sync.dynamodb.tableName and graphId are required for the dynamodb source")
		}
	}

	if c.Cache.Provider == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis provider")
	}
	if c.Events.Provider == "eventbridge" && c.Events.EventBusName == "" {
		return fmt.Errorf("events.eventBusName is required for the eventbridge provider")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
