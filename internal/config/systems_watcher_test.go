package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSystemsYAML(t *testing.T, path string, systems ...string) {
	t.Helper()
	content := "schema_version: v1\nsystems:\n"
	for _, name := range systems {
		content += "  - name: " + name + "\n    enabled: true\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSystemsWatcherValidation(t *testing.T) {
	_, err := NewSystemsWatcher(SystemsWatcherConfig{}, func(*SystemsFile) error { return nil })
	require.Error(t, err)

	_, err = NewSystemsWatcher(SystemsWatcherConfig{FilePath: "/tmp/x.yaml"}, nil)
	require.Error(t, err)
}

func TestSystemsWatcherInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "systems.yaml")
	writeSystemsYAML(t, path, "risk_management")

	var mu sync.Mutex
	var loaded *SystemsFile

	w, err := NewSystemsWatcher(SystemsWatcherConfig{FilePath: path, DebounceMillis: 50}, func(f *SystemsFile) error {
		mu.Lock()
		defer mu.Unlock()
		loaded = f
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, loaded)
	assert.Equal(t, "risk_management", loaded.Systems[0].Name)
}

func TestSystemsWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "systems.yaml")
	writeSystemsYAML(t, path, "risk_management")

	var mu sync.Mutex
	var systemCount int

	w, err := NewSystemsWatcher(SystemsWatcherConfig{FilePath: path, DebounceMillis: 50}, func(f *SystemsFile) error {
		mu.Lock()
		defer mu.Unlock()
		systemCount = len(f.Systems)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeSystemsYAML(t, path, "risk_management", "pnl_system")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return systemCount == 2
	}, 5*time.Second, 25*time.Millisecond, "reload did not pick up new system")
}

func TestSystemsWatcherKeepsPreviousOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "systems.yaml")
	writeSystemsYAML(t, path, "risk_management")

	var mu sync.Mutex
	reloads := 0

	w, err := NewSystemsWatcher(SystemsWatcherConfig{FilePath: path, DebounceMillis: 50}, func(f *SystemsFile) error {
		mu.Lock()
		defer mu.Unlock()
		reloads++
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Broken YAML must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte("schema_version: v9\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, reloads, "invalid config should not trigger callback")
}
