package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, w *Watcher[testConfig]) {
	t.Helper()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	// fsnotify needs a moment before the first write is observed.
	time.Sleep(50 * time.Millisecond)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgelatency.toml")
	writeConfig(t, path, "name = \"initial\"\nvalue = 1\n")

	received := make(chan testConfig, 1)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(cfg testConfig) { received <- cfg })
	startWatcher(t, w)

	writeConfig(t, path, "name = \"updated\"\nvalue = 42\n")

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("got %+v, want name=updated value=42", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcher_ReloadsOnRenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edgelatency.toml")
	writeConfig(t, path, "value = 1\n")

	received := make(chan testConfig, 4)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(cfg testConfig) { received <- cfg })
	startWatcher(t, w)

	tmp := filepath.Join(dir, ".edgelatency.toml.swp")
	writeConfig(t, tmp, "value = 7\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Value != 7 {
			t.Errorf("value = %d, want 7", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edgelatency.toml")
	writeConfig(t, path, "value = 1\n")

	var count atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](20*time.Millisecond))
	w.OnReload(func(testConfig) { count.Add(1) })
	startWatcher(t, w)

	writeConfig(t, filepath.Join(dir, "other.toml"), "value = 2\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("handler called %d times for unrelated file", got)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgelatency.toml")
	writeConfig(t, path, "value = 0\n")

	var count, last atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](200*time.Millisecond))
	w.OnReload(func(cfg testConfig) {
		count.Add(1)
		last.Store(int32(cfg.Value))
	})
	startWatcher(t, w)

	for i := 1; i <= 5; i++ {
		writeConfig(t, path, fmt.Sprintf("value = %d\n", i))
		time.Sleep(30 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced reload, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("last value = %d, want 5", got)
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgelatency.toml")
	writeConfig(t, path, "value = 10\n")

	var c1, c2 atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger())
	w.OnReload(func(testConfig) { c1.Add(1) })
	unsub := w.OnReload(func(testConfig) { c2.Add(1) })

	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	unsub()
	unsub()
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}

	if c1.Load() != 2 || c2.Load() != 1 {
		t.Errorf("calls = %d/%d, want 2/1", c1.Load(), c2.Load())
	}
}

func TestWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgelatency.toml")
	writeConfig(t, path, "invalid toml [[[")

	var gotErr error
	called := false
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(),
		WithErrorHandler[testConfig](func(err error) { gotErr = err }))
	w.OnReload(func(testConfig) { called = true })

	if err := w.Reload(); err == nil {
		t.Fatal("Reload should fail on invalid TOML")
	}
	if gotErr == nil {
		t.Error("error handler not called")
	}
	if called {
		t.Error("reload handler called despite load error")
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := NewConfigWatcher("/nonexistent/edgelatency.toml", loadTestConfig, newTestLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop before Start = %v", err)
	}
	if w.Path() != "/nonexistent/edgelatency.toml" {
		t.Errorf("Path() = %q", w.Path())
	}
}
