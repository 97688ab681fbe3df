// Package collectors polls runtime counters into metrics.
package collectors

import (
	"context"
	"time"

	"github.com/smazurov/edgelatency/internal/logging"
	"github.com/smazurov/edgelatency/internal/metrics"
)

// EdgeCounters is implemented by the actuation notifier.
type EdgeCounters interface {
	Signals() uint64
	Coalesced() uint64
}

// EdgeCollector periodically copies notifier counters into metrics.
type EdgeCollector struct {
	logger   logging.Logger
	source   EdgeCounters
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEdgeCollector creates a collector polling source every interval.
func NewEdgeCollector(source EdgeCounters, interval time.Duration) *EdgeCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &EdgeCollector{
		logger:   logging.GetLogger("metrics"),
		source:   source,
		interval: interval,
	}
}

// Start begins collecting.
func (c *EdgeCollector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run()
	return nil
}

// Stop stops the collector and waits for it to exit.
func (c *EdgeCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *EdgeCollector) run() {
	defer close(c.done)

	c.logger.Debug("Starting edge counter collection", "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-c.ctx.Done():
			c.collect()
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *EdgeCollector) collect() {
	signals, coalesced := c.source.Signals(), c.source.Coalesced()
	metrics.SetEdgeCounters(signals, coalesced)
	if coalesced > 0 {
		c.logger.Debug("Edges coalesced", "signalled", signals, "coalesced", coalesced)
	}
}
