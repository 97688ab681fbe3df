package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	defaultBufferSize = 500

	// identifier tags journal entries (journalctl -t edgelatency).
	identifier = "edgelatency"
)

// Logger is the subset of *slog.Logger that components depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type registry struct {
	mu          sync.RWMutex
	config      Config
	initialized bool
	loggers     map[string]*slog.Logger
	levels      map[string]*slog.LevelVar
	global      slog.LevelVar
	buffer      *RingBuffer
	callback    LogCallback
	out         io.Writer
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		loggers: make(map[string]*slog.Logger),
		levels:  make(map[string]*slog.LevelVar),
		out:     os.Stdout,
	}
}

// Initialize sets up the logging system. Loggers handed out earlier keep
// working: their levels are updated and their handlers rebuilt.
func Initialize(config Config) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.config = config
	reg.initialized = true
	if reg.buffer == nil {
		reg.buffer = NewRingBuffer(defaultBufferSize)
	}

	reg.global.Set(levelOr(config.Level, slog.LevelInfo))
	for module, lv := range reg.levels {
		lv.Set(reg.moduleLevel(module))
		reg.loggers[module] = slog.New(reg.handler(lv)).With("module", module)
	}

	slog.SetDefault(slog.New(reg.handler(&reg.global)))
}

// SetLevels re-applies global and per-module levels without rebuilding
// handlers. Used when the configuration file changes at runtime.
func SetLevels(config Config) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.config.Level = config.Level
	reg.config.Modules = config.Modules
	reg.global.Set(levelOr(config.Level, slog.LevelInfo))
	for module, lv := range reg.levels {
		lv.Set(reg.moduleLevel(module))
	}
}

// GetBuffer returns the ring buffer holding recent log entries, or nil
// before Initialize.
func GetBuffer() *RingBuffer {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.buffer
}

// SetLogCallback registers a function called for every buffered entry.
func SetLogCallback(callback LogCallback) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.callback = callback
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	reg.mu.RLock()
	logger, ok := reg.loggers[module]
	reg.mu.RUnlock()
	if ok {
		return logger
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if logger, ok := reg.loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(reg.moduleLevel(module))
	logger = slog.New(reg.handler(lv)).With("module", module)

	reg.loggers[module] = logger
	reg.levels[module] = lv
	return logger
}

// moduleLevel resolves the level for module. Caller holds the lock.
func (r *registry) moduleLevel(module string) slog.Level {
	if !r.initialized {
		return slog.LevelInfo
	}
	level := levelOr(r.config.Level, slog.LevelInfo)
	if s, ok := r.config.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// handler builds the output chain: stdout (text or json) when usable, the
// journal when available, and the ring buffer.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if r.config.Format == "json" {
		stdout = slog.NewJSONHandler(r.out, opts)
	} else {
		stdout = slog.NewTextHandler(r.out, opts)
	}

	var handlers []slog.Handler
	if r.out != os.Stdout || isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// currentSink returns the buffer and callback for the buffer handler.
func currentSink() (*RingBuffer, LogCallback) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.buffer, reg.callback
}

// isStdoutAvailable reports whether stdout goes somewhere other than /dev/null.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// levelOr parses s, returning fallback for empty or unknown values.
func levelOr(s string, fallback slog.Level) slog.Level {
	if l := parseLevel(s); l != nil {
		return *l
	}
	return fallback
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
