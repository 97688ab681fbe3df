package metrics

import (
	"log/slog"
	"sync"

	"github.com/smazurov/edgelatency/internal/events"
)

// Recorder turns bus events into metric updates and keeps the last
// actuation for status queries.
type Recorder struct {
	bus    *events.Bus
	logger *slog.Logger
	unsubs []func()

	mu   sync.RWMutex
	last *events.ActuationEvent
}

// NewRecorder creates a recorder for bus.
func NewRecorder(bus *events.Bus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{bus: bus, logger: logger}
}

// Start subscribes to actuation and transport events.
func (r *Recorder) Start() {
	r.unsubs = append(r.unsubs,
		r.bus.Subscribe(r.onActuation),
		r.bus.Subscribe(func(e events.SendFailedEvent) {
			IncSend(e.Transport, e.Reason)
		}),
		r.bus.Subscribe(func(e events.RecipientChangedEvent) {
			SetRecipientActive(e.Transport, e.Active())
		}),
	)
	r.logger.Debug("Metrics recorder started")
}

// Stop unsubscribes from the bus.
func (r *Recorder) Stop() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}

// Last returns the most recent actuation event.
func (r *Recorder) Last() (events.ActuationEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return events.ActuationEvent{}, false
	}
	return *r.last, true
}

func (r *Recorder) onActuation(e events.ActuationEvent) {
	ObserveLatency(e.ElapsedNs/1e9, e.ElapsedCycles, e.On)
	if e.Sent {
		IncSend(e.Transport, "ok")
	}

	r.mu.Lock()
	r.last = &e
	r.mu.Unlock()
}
