// Package clock provides the cycle counter used to timestamp edges and
// measure actuation latency.
//
// The counter is 32 bits wide and wraps. Values are only meaningful as the
// difference between two readings taken from the same Clock; use Elapsed
// for that so wraparound is handled.
package clock

import (
	"sync/atomic"
	"time"
)

// DefaultHz is the counter rate of the reference board (160 MHz CPU clock).
const DefaultHz uint32 = 160_000_000

// Clock is a monotonic, wrapping cycle counter.
type Clock interface {
	// Cycles returns the current counter value.
	Cycles() uint32
	// Hz returns the counter frequency.
	Hz() uint32
}

// Elapsed returns to-from using unsigned modular arithmetic.
// The result is correct as long as less than one full counter period
// separates the two readings.
func Elapsed(from, to uint32) uint32 {
	return to - from
}

// Nanoseconds converts a cycle count at hz into nanoseconds.
func Nanoseconds(cycles, hz uint32) float64 {
	if hz == 0 {
		return 0
	}
	return float64(cycles) * 1e9 / float64(hz)
}

// Duration converts a cycle count at hz into a time.Duration.
func Duration(cycles, hz uint32) time.Duration {
	return time.Duration(Nanoseconds(cycles, hz))
}

// Monotonic derives a cycle counter from the Go monotonic clock.
type Monotonic struct {
	hz    uint32
	epoch time.Time
}

// NewMonotonic returns a Monotonic clock ticking at hz. A zero hz selects DefaultHz.
func NewMonotonic(hz uint32) *Monotonic {
	if hz == 0 {
		hz = DefaultHz
	}
	return &Monotonic{hz: hz, epoch: time.Now()}
}

// Cycles implements Clock.
func (m *Monotonic) Cycles() uint32 {
	ns := uint64(time.Since(m.epoch))
	// Split to keep the multiplication inside 64 bits for long uptimes.
	sec, rem := ns/1e9, ns%1e9
	return uint32(sec*uint64(m.hz) + rem*uint64(m.hz)/1e9)
}

// Hz implements Clock.
func (m *Monotonic) Hz() uint32 {
	return m.hz
}

// Manual is a Clock whose value only changes when told to.
type Manual struct {
	hz  uint32
	now atomic.Uint32
}

// NewManual returns a Manual clock at hz starting at start.
func NewManual(hz, start uint32) *Manual {
	m := &Manual{hz: hz}
	m.now.Store(start)
	return m
}

// Cycles implements Clock.
func (m *Manual) Cycles() uint32 {
	return m.now.Load()
}

// Hz implements Clock.
func (m *Manual) Hz() uint32 {
	return m.hz
}

// Set moves the counter to v.
func (m *Manual) Set(v uint32) {
	m.now.Store(v)
}

// Advance moves the counter forward by n cycles, wrapping as hardware would.
func (m *Manual) Advance(n uint32) {
	m.now.Add(n)
}
