// Package gpio delivers falling edges from an input pin to a handler.
package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// pollInterval bounds how long the watcher blocks before checking for Close.
const pollInterval = 100 * time.Millisecond

// ErrAlreadyWatching is returned when Watch is called twice on a source.
var ErrAlreadyWatching = errors.New("edge source already watched")

// EdgeSource delivers edges to a handler from its own goroutine.
type EdgeSource interface {
	// Watch arms the source and calls handler for every edge until Close.
	Watch(handler func()) error
	Close() error
}

// pinIO is the subset of gpio.PinIO the watcher needs, so tests can fake it.
type pinIO interface {
	Name() string
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
	Halt() error
}

// Pin watches a physical GPIO line for falling edges.
type Pin struct {
	pin    pinIO
	logger *slog.Logger

	mu       sync.Mutex
	watching bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// Open initializes the host drivers and looks up the named pin
// (e.g. "GPIO17" or a board header name such as "P1_11").
func Open(name string, logger *slog.Logger) (*Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GPIO host drivers: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("GPIO pin %q not found", name)
	}
	return newPin(p, logger), nil
}

func newPin(p pinIO, logger *slog.Logger) *Pin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pin{pin: p, logger: logger, done: make(chan struct{})}
}

// Watch configures the pin as a pulled-up input with falling edge detection
// and starts the watcher goroutine.
func (p *Pin) Watch(handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watching {
		return ErrAlreadyWatching
	}
	if err := p.pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("failed to configure %s for falling edges: %w", p.pin.Name(), err)
	}
	p.watching = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.done:
				return
			default:
			}
			if p.pin.WaitForEdge(pollInterval) {
				handler()
			}
		}
	}()

	p.logger.Info("Watching GPIO for falling edges", "pin", p.pin.Name())
	return nil
}

// Close stops the watcher and releases edge detection on the pin.
func (p *Pin) Close() error {
	p.mu.Lock()
	if !p.watching {
		p.mu.Unlock()
		return nil
	}
	p.watching = false
	close(p.done)
	p.mu.Unlock()

	err := p.pin.Halt()
	p.wg.Wait()
	return err
}

// ManualPin selects a Manual edge source instead of a hardware pin.
const ManualPin = "manual"

// Manual is an EdgeSource driven by Fire. With gpio.pin = "manual" the
// firmware uses it as its input and API triggers fire it.
type Manual struct {
	mu      sync.Mutex
	handler func()
}

// Watch implements EdgeSource.
func (m *Manual) Watch(handler func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler != nil {
		return ErrAlreadyWatching
	}
	m.handler = handler
	return nil
}

// Fire delivers one edge. It is a no-op before Watch or after Close.
func (m *Manual) Fire() {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h()
	}
}

// Close implements EdgeSource.
func (m *Manual) Close() error {
	m.mu.Lock()
	m.handler = nil
	m.mu.Unlock()
	return nil
}
