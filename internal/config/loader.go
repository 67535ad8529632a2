package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "GRAPHMIND_"

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// Loader handles loading configuration from multiple sources.
type Loader struct {
	basePath    string
	environment Environment
	sources     []string

	// fileLoaders are tried in registration order for each layer.
	fileLoaders []FileLoader
	lookupEnv   func(string) (string, bool)
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// NewLoader creates a loader reading files under basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	if env == "" {
		env = Development
	}

	loader := &Loader{
		basePath:    basePath,
		environment: env,
		lookupEnv:   os.LookupEnv,
	}
	loader.RegisterLoader(&YAMLLoader{})
	loader.RegisterLoader(&JSONLoader{})
	loader.RegisterLoader(&TOMLLoader{})
	return loader
}

// RegisterLoader registers a new file loader for a specific format.
func (l *Loader) RegisterLoader(loader FileLoader) {
	l.fileLoaders = append(l.fileLoaders, loader)
}

// BasePath returns the directory the loader reads from.
func (l *Loader) BasePath() string { return l.basePath }

// Load loads configuration using a hierarchy of sources.
// The loading order (from lowest to highest priority):
//  1. Default values (in code)
//  2. Base configuration file (base.yaml, base.json or base.toml)
//  3. Environment-specific file (e.g., production.yaml)
//  4. Local overrides file (local.yaml - development only)
//  5. Environment variables (GRAPHMIND_*)
func (l *Loader) Load() (*Config, error) {
	l.sources = l.sources[:0]

	cfg := Default(l.environment)
	l.sources = append(l.sources, "defaults")

	if err := l.loadFile("base", cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load local config: %v\n", err)
		}
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	l.sources = append(l.sources, "environment")

	// Files may not override the environment chosen by the caller.
	cfg.Environment = l.environment
	cfg.LoadedFrom = append([]string(nil), l.sources...)
	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the first existing file named name.<ext>.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, loader := range l.fileLoaders {
		path := filepath.Join(l.basePath, fmt.Sprintf("%s.%s", name, loader.Extension()))

		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}

		err = loader.Load(file, cfg)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		l.sources = append(l.sources, path)
		return nil
	}
	return fs.ErrNotExist
}

// loadEnvironmentVariables overlays environment variables on the configuration.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if val, ok := l.lookupEnv(EnvPrefix + key); ok && val != "" {
			*dst = val
		}
	}
	integer := func(key string, dst *int) {
		if val, ok := l.lookupEnv(EnvPrefix + key); ok && val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	integer64 := func(key string, dst *int64) {
		if val, ok := l.lookupEnv(EnvPrefix + key); ok && val != "" {
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if val, ok := l.lookupEnv(EnvPrefix + key); ok && val != "" {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if val, ok := l.lookupEnv(EnvPrefix + key); ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val, ok := l.lookupEnv(EnvPrefix + key); ok && val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	// Layout
	float("LINK_DISTANCE", &cfg.Layout.LinkDistance)
	float("CHARGE_STRENGTH", &cfg.Layout.ChargeStrength)
	float("CENTER_X", &cfg.Layout.CenterX)
	float("CENTER_Y", &cfg.Layout.CenterY)
	duration("TICK_INTERVAL", &cfg.Layout.TickInterval)
	integer64("SEED", &cfg.Layout.Seed)

	// Sync
	str("SYNC_SOURCE", &cfg.Sync.Source)
	duration("SYNC_TIMEOUT", &cfg.Sync.Timeout)
	str("GRAPHQL_ENDPOINT", &cfg.Sync.GraphQL.Endpoint)
	str("GRAPHQL_TITLE_FILTER", &cfg.Sync.GraphQL.TitleFilter)
	str("SQLITE_PATH", &cfg.Sync.SQLite.Path)
	str("TABLE_NAME", &cfg.Sync.DynamoDB.TableName)
	str("GRAPH_ID", &cfg.Sync.DynamoDB.GraphID)
	str("DYNAMODB_ENDPOINT", &cfg.Sync.DynamoDB.Endpoint)
	if val, ok := l.lookupEnv("AWS_REGION"); ok && val != "" {
		cfg.Sync.DynamoDB.Region = val
	}

	// Cache and events
	str("CACHE_PROVIDER", &cfg.Cache.Provider)
	str("REDIS_ADDR", &cfg.Cache.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	str("EVENTS_PROVIDER", &cfg.Events.Provider)
	str("EVENT_BUS_NAME", &cfg.Events.EventBusName)

	// Server
	str("SERVER_HOST", &cfg.Server.Host)
	integer("SERVER_PORT", &cfg.Server.Port)

	// Observability
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
	str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)

	return errors.Join(errs...)
}

// ============================================================================
// FILE LOADERS
// ============================================================================

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	err := yaml.NewDecoder(reader).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (y *YAMLLoader) Extension() string { return "yaml" }

// JSONLoader loads configuration from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extension() string { return "json" }

// TOMLLoader loads configuration from TOML files.
type TOMLLoader struct{}

func (t *TOMLLoader) Load(reader io.Reader, target interface{}) error {
	_, err := toml.NewDecoder(reader).Decode(target)
	return err
}

func (t *TOMLLoader) Extension() string { return "toml" }

// ============================================================================
// ENTRY POINTS
// ============================================================================

// EnvironmentFromEnv reads GRAPHMIND_ENV, defaulting to development.
func EnvironmentFromEnv() Environment {
	switch strings.ToLower(os.Getenv(EnvPrefix + "ENV")) {
	case string(Production):
		return Production
	case string(Staging):
		return Staging
	default:
		return Development
	}
}

// Load loads configuration from dir (GRAPHMIND_CONFIG_DIR or ./config when empty).
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvPrefix + "CONFIG_DIR")
	}
	return NewLoader(dir, EnvironmentFromEnv()).Load()
}

// MustLoad loads configuration and panics on error.
// Use this only in main() functions.
func MustLoad(dir string) *Config {
	cfg, err := Load(dir)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
