package actuation

import (
	"sync/atomic"

	"github.com/smazurov/edgelatency/internal/clock"
)

// Notifier is a single-slot wake-up channel shared by every edge producer and
// consumed by the Task.
type Notifier struct {
	ch        chan struct{}
	signals   atomic.Uint64
	coalesced atomic.Uint64
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Signal marks the Notifier pending. It never blocks; if a wake-up is already
// pending the call is folded into it.
func (n *Notifier) Signal() {
	n.signals.Add(1)
	select {
	case n.ch <- struct{}{}:
	default:
		n.coalesced.Add(1)
	}
}

// C returns the receive side. Receiving consumes the pending wake-up.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}

// Signals returns the number of Signal calls so far.
func (n *Notifier) Signals() uint64 {
	return n.signals.Load()
}

// Coalesced returns how many Signal calls were folded into a pending wake-up.
func (n *Notifier) Coalesced() uint64 {
	return n.coalesced.Load()
}

// EdgeTimestamp is the single-writer, single-reader slot carrying the cycle
// count of the most recent edge to the Task. A newer edge overwrites a value
// that has not been consumed yet.
type EdgeTimestamp struct {
	v atomic.Uint32
}

// Store records the timestamp of an edge.
func (e *EdgeTimestamp) Store(cycles uint32) {
	e.v.Store(cycles)
}

// Load returns the last stored timestamp.
func (e *EdgeTimestamp) Load() uint32 {
	return e.v.Load()
}

// Detector is the edge handler. OnEdge runs in the context of whatever
// delivers the edge (GPIO watcher goroutine or timer) and must stay cheap:
// no blocking, no allocation, no I/O.
type Detector struct {
	clock    clock.Clock
	stamp    *EdgeTimestamp
	notifier *Notifier
}

// NewDetector binds a detector to a clock, a timestamp slot and a notifier.
func NewDetector(c clock.Clock, stamp *EdgeTimestamp, n *Notifier) *Detector {
	return &Detector{clock: c, stamp: stamp, notifier: n}
}

// OnEdge captures the current cycle count and wakes the Task.
func (d *Detector) OnEdge() {
	d.stamp.Store(d.clock.Cycles())
	d.notifier.Signal()
}
