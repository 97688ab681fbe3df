package actuation

import "sync/atomic"

// State is the actuator on/off flag. It starts off.
type State struct {
	on atomic.Bool
}

// NewState returns an actuator state that is off.
func NewState() *State {
	return &State{}
}

// IsOn reports whether the actuator is currently on.
func (s *State) IsOn() bool {
	return s.on.Load()
}

// toggle flips the state and returns the new value. Only the Task calls it.
func (s *State) toggle() bool {
	next := !s.on.Load()
	s.on.Store(next)
	return next
}

// LatencySample is the measurement produced for one processed event.
type LatencySample struct {
	ElapsedCycles uint32
	On            bool
}
