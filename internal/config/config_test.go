package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLoader(t *testing.T, dir string, env Environment, vars map[string]string) *Loader {
	t.Helper()
	l := NewLoader(dir, env)
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
	return l
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default(Development)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 150.0, cfg.Layout.LinkDistance)
	assert.Equal(t, -300.0, cfg.Layout.ChargeStrength)
	assert.Equal(t, 0.001, cfg.Layout.AlphaMin)
	assert.Equal(t, 16, cfg.Render.OutlineAnchors)
	assert.Len(t, cfg.Render.Palette, 5)
}

func TestLoader_LayersFilesAndEnvironment(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
layout:
  linkDistance: 120
  tickInterval: 20ms
sync:
  source: sqlite
  sqlite:
    path: base.db
`)
	writeFile(t, dir, "development.toml", `
[layout]
chargeStrength = -500.0

[sync.sqlite]
path = "dev.db"
`)
	loader := newTestLoader(t, dir, Development, map[string]string{
		"GRAPHMIND_SERVER_PORT": "9090",
		"GRAPHMIND_LOG_LEVEL":   "debug",
	})

	// Act
	cfg, err := loader.Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.Layout.LinkDistance)
	assert.Equal(t, 20*time.Millisecond, cfg.Layout.TickInterval)
	assert.Equal(t, -500.0, cfg.Layout.ChargeStrength)
	assert.Equal(t, SourceSQLite, cfg.Sync.Source)
	assert.Equal(t, "dev.db", cfg.Sync.SQLite.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 400.0, cfg.Layout.CenterX, "untouched defaults survive")
	assert.Contains(t, cfg.LoadedFrom, "defaults")
	assert.Contains(t, cfg.LoadedFrom, filepath.Join(dir, "base.yaml"))
	assert.Contains(t, cfg.LoadedFrom, "environment")
}

func TestLoader_ProductionForcesJSONLogs(t *testing.T) {
	loader := newTestLoader(t, t.TempDir(), Production, nil)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, Production, cfg.Environment)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Interaction.ConfirmDeletes)
}

func TestLoader_InvalidEnvironmentValue(t *testing.T) {
	loader := newTestLoader(t, t.TempDir(), Development, map[string]string{
		"GRAPHMIND_SERVER_PORT": "not-a-number",
	})

	_, err := loader.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPHMIND_SERVER_PORT")
}

func TestLoader_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.json", `{"layout": `)

	_, err := newTestLoader(t, dir, Development, nil).Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "base config")
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Sync.Source = "postgres" },
			wantErr: "Source",
		},
		{
			name:    "graphql without endpoint",
			mutate:  func(c *Config) { c.Sync.Source = SourceGraphQL; c.Sync.GraphQL.Endpoint = "" },
			wantErr: "sync.graphql.endpoint",
		},
		{
			name:    "alpha decay out of range",
			mutate:  func(c *Config) { c.Layout.AlphaDecay = 1.5 },
			wantErr: "AlphaDecay",
		},
		{
			name:    "distance max below min",
			mutate:  func(c *Config) { c.Layout.DistanceMin = 10; c.Layout.DistanceMax = 5 },
			wantErr: "distanceMax",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Cache.Provider = "redis"; c.Cache.Redis.Addr = "" },
			wantErr: "cache.redis.addr",
		},
		{
			name:    "bad palette colour",
			mutate:  func(c *Config) { c.Render.Palette = []string{"blue"} },
			wantErr: "Palette",
		},
		{
			name:    "too few outline anchors",
			mutate:  func(c *Config) { c.Render.OutlineAnchors = 2 },
			wantErr: "OutlineAnchors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(Development)
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatcher_ReloadNotifiesOnChange(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	loader := newTestLoader(t, dir, Development, nil)
	initial, err := loader.Load()
	require.NoError(t, err)

	w := &Watcher{loader: loader, config: initial, logger: zap.NewNop(), stopCh: make(chan struct{})}
	var calls int32
	var got *Config
	w.OnChange(func(c *Config) {
		atomic.AddInt32(&calls, 1)
		got = c
	})

	// Act: unchanged reload is ignored
	w.Reload()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	writeFile(t, dir, "base.yaml", "layout:\n  linkDistance: 90\n")
	w.Reload()

	// Assert
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.NotNil(t, got)
	assert.Equal(t, 90.0, got.Layout.LinkDistance)
	assert.Equal(t, 90.0, w.Config().Layout.LinkDistance)
}

func TestWatcher_InvalidReloadKeepsConfig(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader(t, dir, Development, nil)
	initial, err := loader.Load()
	require.NoError(t, err)
	w := &Watcher{loader: loader, config: initial, logger: zap.NewNop(), stopCh: make(chan struct{})}

	writeFile(t, dir, "base.yaml", "layout:\n  linkDistance: -1\n")
	w.Reload()

	assert.Same(t, initial, w.Config())
}

func TestWatcher_CallbackPanicIsContained(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader(t, dir, Development, nil)
	initial, err := loader.Load()
	require.NoError(t, err)
	w := &Watcher{loader: loader, config: initial, logger: zap.NewNop(), stopCh: make(chan struct{})}

	var second bool
	w.OnChange(func(*Config) { panic("boom") })
	w.OnChange(func(*Config) { second = true })

	writeFile(t, dir, "base.yaml", "layout:\n  linkDistance: 80\n")
	assert.NotPanics(t, w.Reload)
	assert.True(t, second)
}
