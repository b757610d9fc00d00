package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opsight/opsight/internal/logging"
)

// ReloadCallback is called when the systems config file is successfully
// reloaded. If the callback returns an error, it is logged but the watcher
// continues watching.
type ReloadCallback func(config *SystemsFile) error

// SystemsWatcherConfig holds configuration for the SystemsWatcher.
type SystemsWatcherConfig struct {
	// FilePath is the path to the systems YAML file to watch
	FilePath string

	// DebounceMillis coalesces multiple file change events within this
	// period into a single reload. Default: 500ms.
	DebounceMillis int
}

// SystemsWatcher watches the monitored-systems config file for changes and
// triggers reload callbacks with debouncing to absorb editor save sequences.
//
// Invalid configs during reload are logged but do not crash the watcher; it
// keeps the previous valid config and continues watching.
type SystemsWatcher struct {
	config   SystemsWatcherConfig
	callback ReloadCallback
	logger   *logging.Logger
	cancel   context.CancelFunc
	stopped  chan struct{}
	ready    chan struct{}
	mu       sync.Mutex

	debounceTimer *time.Timer
}

// NewSystemsWatcher creates a new watcher for the given config file.
// The callback is invoked whenever the file changes and the new config is
// valid.
func NewSystemsWatcher(config SystemsWatcherConfig, callback ReloadCallback) (*SystemsWatcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}

	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}

	if config.DebounceMillis == 0 {
		config.DebounceMillis = 500
	}

	return &SystemsWatcher{
		config:   config,
		callback: callback,
		logger:   logging.GetLogger("config.watcher"),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Start loads the initial config, invokes the callback with it, and begins
// watching for file changes. Returns an error if the initial load or initial
// callback fails.
func (w *SystemsWatcher) Start(ctx context.Context) error {
	initialConfig, err := LoadSystemsFile(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load initial config: %w", err)
	}

	if err := w.callback(initialConfig); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	w.logger.InfoWithFields("loaded initial systems config",
		logging.Field("path", w.config.FilePath),
		logging.Field("systems", len(initialConfig.Systems)),
	)

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	// Wait for the fsnotify watch to be registered so file changes made
	// right after Start returns are not missed.
	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}

	return nil
}

// IsReady reports whether the watcher has loaded its initial config and is
// watching for changes.
func (w *SystemsWatcher) IsReady() bool {
	select {
	case <-w.ready:
		return true
	default:
		return false
	}
}

// signalReady closes the ready channel exactly once.
func (w *SystemsWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *SystemsWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.ErrorWithErr("failed to create file watcher", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.FilePath); err != nil {
		w.logger.ErrorWithErr("failed to watch systems config file", err)
		return
	}

	w.logger.DebugWithFields("watching systems config",
		logging.Field("path", w.config.FilePath),
		logging.Field("debounce_ms", w.config.DebounceMillis),
	)

	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Rename and Remove cover atomic writes where the old file is
			// unlinked before the new one lands; the watch follows the
			// inode, so it must be re-added.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
					time.Sleep(50 * time.Millisecond)
					if err := watcher.Add(w.config.FilePath); err != nil {
						w.logger.WarnWithFields("failed to re-add watch",
							logging.Field("op", event.Op.String()),
							logging.Field("error", err.Error()),
						)
					}
				}
				w.handleFileChange(ctx)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.ErrorWithErr("file watcher error", err)
		}
	}
}

// handleFileChange debounces change events by resetting a timer on each one.
func (w *SystemsWatcher) handleFileChange(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		func() {
			w.reloadConfig(ctx)
		},
	)
}

// reloadConfig reloads the config file and calls the callback if successful.
// Invalid configs keep the previous config in effect.
func (w *SystemsWatcher) reloadConfig(ctx context.Context) {
	newConfig, err := LoadSystemsFile(w.config.FilePath)
	if err != nil {
		w.logger.WarnWithFields("reload failed, keeping previous config",
			logging.Field("error", err.Error()),
		)
		return
	}

	if err := w.callback(newConfig); err != nil {
		w.logger.WarnWithFields("reload callback error",
			logging.Field("error", err.Error()),
		)
		return
	}

	w.logger.InfoWithFields("systems config reloaded",
		logging.Field("systems", len(newConfig.Systems)),
	)
}

// Stop gracefully stops the file watcher, waiting up to 5 seconds for the
// watch loop to exit.
func (w *SystemsWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}

	select {
	case <-w.stopped:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for watcher to stop")
	}
}
