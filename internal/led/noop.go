package led

import (
	"log/slog"
	"sync"
)

// noop implements Indicator for systems without a usable LED.
// It remembers the last color so status endpoints can still report it.
type noop struct {
	logger *slog.Logger
	mu     sync.Mutex
	last   Color
}

// newNoop creates a new no-op LED controller
func newNoop(logger *slog.Logger) *noop {
	if logger == nil {
		logger = slog.Default()
	}
	return &noop{logger: logger}
}

// SetColor logs the request but performs no actual LED control
func (n *noop) SetColor(c Color) error {
	n.mu.Lock()
	n.last = c
	n.mu.Unlock()
	n.logger.Debug("LED control not available (no-op)", "color", c.String())
	return nil
}

// SetPattern is accepted and ignored.
func (n *noop) SetPattern(pattern string) error {
	n.logger.Debug("LED pattern not available (no-op)", "pattern", pattern)
	return nil
}

// Name implements Indicator.
func (n *noop) Name() string {
	return "noop"
}

// Last returns the most recent color pushed.
func (n *noop) Last() Color {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
