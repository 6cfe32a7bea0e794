package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the config file when it changes on disk
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	mu       sync.RWMutex
	current  *Config
	onChange []func(prev, next *Config)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches the file cfg was loaded from
func NewWatcher(cfg *Config, logger *zap.Logger) (*Watcher, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("config was not loaded from a file")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so editors that save by rename are seen too
	if err := watcher.Add(filepath.Dir(cfg.File)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:    cfg.File,
		watcher: watcher,
		logger:  logger,
		current: cfg,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnChange registers a callback for successful reloads
func (w *Watcher) OnChange(handler func(prev, next *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the most recently loaded configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	w.logger.Info("Configuration file changed, reloading", zap.String("path", w.path))

	next, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = next
	handlers := append([]func(prev, next *Config){}, w.onChange...)
	w.mu.Unlock()

	if old.LogLevel != next.LogLevel {
		w.logger.Info("Log level changed",
			zap.String("from", old.LogLevel),
			zap.String("to", next.LogLevel),
		)
	}
	for _, handler := range handlers {
		handler(old, next)
	}
}
