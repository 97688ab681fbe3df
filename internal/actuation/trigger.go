package actuation

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTriggerInterval is the self-trigger period used when none is configured.
const DefaultTriggerInterval = 500 * time.Millisecond

// PeriodicTrigger synthesizes edges at a fixed interval through the same
// Detector path as the GPIO input.
type PeriodicTrigger struct {
	interval time.Duration
	detector *Detector
	logger   *slog.Logger
}

// NewPeriodicTrigger creates a trigger. An interval of zero disables it.
func NewPeriodicTrigger(interval time.Duration, d *Detector, logger *slog.Logger) *PeriodicTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeriodicTrigger{interval: interval, detector: d, logger: logger}
}

// Enabled reports whether the trigger will produce edges.
func (p *PeriodicTrigger) Enabled() bool {
	return p.interval > 0
}

// Run fires once immediately and then on every tick until ctx is cancelled.
func (p *PeriodicTrigger) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Info("Periodic trigger disabled")
		return
	}

	p.logger.Info("Periodic trigger started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.detector.OnEdge()
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Periodic trigger stopped")
			return
		case <-ticker.C:
			p.detector.OnEdge()
		}
	}
}
