package led

import (
	"log/slog"

	"github.com/smazurov/edgelatency/internal/events"
)

// StatusManager drives a status LED from transport link events: solid while a
// telemetry recipient is attached, heartbeat while waiting for one.
type StatusManager struct {
	status      Patterned
	eventBus    *events.Bus
	unsubscribe func()
	logger      *slog.Logger
}

// NewStatusManager creates a manager for the given status LED.
func NewStatusManager(status Patterned, eventBus *events.Bus, logger *slog.Logger) *StatusManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusManager{
		status:   status,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Start shows the waiting pattern and begins listening for recipient changes.
func (m *StatusManager) Start() {
	m.apply(false)
	m.unsubscribe = m.eventBus.Subscribe(func(e events.RecipientChangedEvent) {
		m.logger.Debug("Recipient changed",
			"transport", e.Transport,
			"state", e.State,
			"recipient_id", e.RecipientID)
		m.apply(e.Active())
	})
	m.logger.Info("Status LED manager started")
}

// Stop unsubscribes from events.
func (m *StatusManager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.logger.Info("Status LED manager stopped")
}

func (m *StatusManager) apply(active bool) {
	pattern := "heartbeat"
	if active {
		pattern = "solid"
	}
	if err := m.status.SetPattern(pattern); err != nil {
		m.logger.Warn("Failed to set status LED pattern", "pattern", pattern, "error", err)
	}
}
