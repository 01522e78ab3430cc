package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce collapses the burst of events a single save produces
var reloadDebounce = 250 * time.Millisecond

// ConfigWatcher reloads the configuration file when it changes and hands
// the new configuration to registered callbacks. It watches the parent
// directory so editors that replace the file by rename are seen too.
type ConfigWatcher struct {
	path      string
	config    *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// NewConfigWatcher starts watching initial.ConfigFile
func NewConfigWatcher(initial *Config, logger *zap.Logger) (*ConfigWatcher, error) {
	if initial.ConfigFile == "" {
		return nil, fmt.Errorf("no configuration file to watch")
	}

	path, err := filepath.Abs(initial.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &ConfigWatcher{
		path:     path,
		config:   initial,
		logger:   logger,
		watcher:  fsWatcher,
		debounce: reloadDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.watchLoop()

	logger.Info("Configuration hot reloading enabled", zap.String("file", path))
	return w, nil
}

// watchLoop monitors for file changes and triggers reloads
func (w *ConfigWatcher) watchLoop() {
	defer close(w.doneCh)
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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reloadConfig)

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

// reloadConfig reloads the configuration from the file. An invalid file
// keeps the previous configuration.
func (w *ConfigWatcher) reloadConfig() {
	newConfig, err := LoadFrom(w.path)
	if err != nil {
		w.logger.Error("Invalid configuration after reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.config
	w.config = newConfig
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	if old.Visibility.HideThreshold != newConfig.Visibility.HideThreshold {
		w.logger.Info("Hide threshold changed",
			zap.Float64("old", old.Visibility.HideThreshold),
			zap.Float64("new", newConfig.Visibility.HideThreshold),
		)
	}

	for _, cb := range callbacks {
		cb(newConfig)
	}
}

// OnChange registers a callback to be called when configuration changes
func (w *ConfigWatcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// GetConfig returns the current configuration
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops the watcher and waits for its goroutine to exit
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}
