package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after a file event before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches the loader's directory and hot reloads configuration.
type Watcher struct {
	loader    *Loader
	config    *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher starts watching loader.BasePath. initial is the configuration
// currently in use.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(loader.BasePath()); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", loader.BasePath(), err)
	}

	w := &Watcher{
		loader:   loader,
		config:   initial,
		logger:   logger,
		watcher:  fsWatcher,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
	}
	go w.watchLoop()

	logger.Info("Configuration hot reloading enabled",
		zap.String("dir", loader.BasePath()),
		zap.String("environment", string(initial.Environment)),
	)
	return w, nil
}

// watchLoop monitors for file changes and triggers debounced reloads.
func (w *Watcher) watchLoop() {
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.Reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("Stopping configuration watcher")
			return
		}
	}
}

// Reload reloads configuration and notifies callbacks when it changed.
// Invalid configuration is logged and ignored.
func (w *Watcher) Reload() {
	newConfig, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Invalid configuration after reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	if configsEqual(w.config, newConfig) {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload")
		return
	}
	old := w.config
	w.config = newConfig
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	if old.Layout != newConfig.Layout {
		w.logger.Info("Layout configuration changed",
			zap.Float64("link_distance", newConfig.Layout.LinkDistance),
			zap.Float64("charge_strength", newConfig.Layout.ChargeStrength),
		)
	}

	for i, cb := range callbacks {
		w.invoke(i, cb, newConfig)
	}
	w.logger.Info("Configuration reloaded successfully",
		zap.Int("callbacks_notified", len(callbacks)),
	)
}

func (w *Watcher) invoke(idx int, cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Configuration callback panicked",
				zap.Int("callback_index", idx),
				zap.Any("panic", r),
			)
		}
	}()
	cb(cfg)
}

// OnChange registers a callback to be called when configuration changes.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func configsEqual(a, b *Config) bool {
	ac, bc := *a, *b
	ac.LoadedFrom, bc.LoadedFrom = nil, nil
	return reflect.DeepEqual(ac, bc)
}

func isConfigFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// ============================================================================
// COMPONENT RELOADER
// ============================================================================

// ComponentReloader applies configuration changes to one component.
type ComponentReloader struct {
	name     string
	reloadFn func(*Config) error
	logger   *zap.Logger
}

// NewComponentReloader creates a new component reloader.
func NewComponentReloader(name string, reloadFn func(*Config) error, logger *zap.Logger) *ComponentReloader {
	return &ComponentReloader{name: name, reloadFn: reloadFn, logger: logger}
}

// Reload reloads the component with new configuration.
func (r *ComponentReloader) Reload(cfg *Config) {
	if err := r.reloadFn(cfg); err != nil {
		r.logger.Error("Failed to reload component",
			zap.String("component", r.name),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("Component reloaded successfully", zap.String("component", r.name))
}
