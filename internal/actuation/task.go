package actuation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smazurov/edgelatency/internal/clock"
	"github.com/smazurov/edgelatency/internal/events"
	"github.com/smazurov/edgelatency/internal/led"
	"github.com/smazurov/edgelatency/internal/transport"
)

// Sender is the part of a transport the Task uses.
type Sender interface {
	Name() string
	Send(msg []byte) (int, error)
}

// Config holds the collaborators of a Task.
type Config struct {
	Clock     clock.Clock
	Indicator led.Indicator
	Sender    Sender
	// State is shared with transports that answer state reads. Nil creates a new one.
	State   *State
	Style   Style
	OnColor led.Color
	Logger  *slog.Logger
	Bus     *events.Bus
}

// Task is the long-running actuation loop: it waits for an edge, toggles the
// actuator, and reports the measured latency.
type Task struct {
	clock     clock.Clock
	indicator led.Indicator
	sender    Sender
	state     *State
	style     Style
	onColor   led.Color
	logger    *slog.Logger
	bus       *events.Bus

	notifier *Notifier
	stamp    *EdgeTimestamp
	detector *Detector
	seq      uint64
}

// NewTask creates a Task. Clock, Indicator and Sender are required.
func NewTask(cfg Config) *Task {
	if cfg.State == nil {
		cfg.State = NewState()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnColor.IsOff() {
		cfg.OnColor = led.Red(32)
	}

	t := &Task{
		clock:     cfg.Clock,
		indicator: cfg.Indicator,
		sender:    cfg.Sender,
		state:     cfg.State,
		style:     cfg.Style,
		onColor:   cfg.OnColor,
		logger:    cfg.Logger,
		bus:       cfg.Bus,
		notifier:  NewNotifier(),
		stamp:     &EdgeTimestamp{},
	}
	t.detector = NewDetector(t.clock, t.stamp, t.notifier)
	return t
}

// Detector returns the edge handler feeding this task.
func (t *Task) Detector() *Detector {
	return t.detector
}

// Notifier returns the wake-up channel of this task.
func (t *Task) Notifier() *Notifier {
	return t.notifier
}

// State returns the actuator state owned by this task.
func (t *Task) State() *State {
	return t.state
}

// Run processes edges until ctx is cancelled.
func (t *Task) Run(ctx context.Context) error {
	t.logger.Info("Actuation task started",
		"transport", t.sender.Name(),
		"indicator", t.indicator.Name(),
		"format", string(t.style))

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Actuation task stopped", "processed", t.seq)
			return ctx.Err()
		case <-t.notifier.C():
			t.process()
		}
	}
}

// process handles one wake-up. Indicator and transport failures are logged
// and never stop the loop.
func (t *Task) process() LatencySample {
	start := t.stamp.Load()
	now := t.clock.Cycles()
	elapsed := clock.Elapsed(start, now)

	on := t.state.toggle()

	color := led.Off
	if on {
		color = t.onColor
	}
	if err := t.indicator.SetColor(color); err != nil {
		t.logger.Warn("Failed to set indicator", "color", color.String(), "error", err)
	}

	sample := LatencySample{ElapsedCycles: elapsed, On: on}
	msg := Format(sample, t.clock.Hz(), t.style)

	_, err := t.sender.Send(msg)
	if err != nil {
		if errors.Is(err, transport.ErrNoRecipient) || errors.Is(err, transport.ErrNotSubscribed) {
			t.logger.Debug("Telemetry dropped", "transport", t.sender.Name(), "reason", transport.Reason(err))
		} else {
			t.logger.Warn("Telemetry send failed", "transport", t.sender.Name(), "error", err)
		}
		t.bus.Publish(events.SendFailedEvent{
			Transport: t.sender.Name(),
			Reason:    transport.Reason(err),
			Error:     err.Error(),
		})
	}

	ns := clock.Nanoseconds(elapsed, t.clock.Hz())
	t.logger.Debug("Actuation",
		"on", on,
		"cycles", elapsed,
		"latency", clock.Duration(elapsed, t.clock.Hz()),
		"us", ns/1e3,
		"ms", ns/1e6)

	t.seq++
	t.bus.Publish(events.ActuationEvent{
		Seq:           t.seq,
		On:            on,
		ElapsedCycles: elapsed,
		ElapsedNs:     ns,
		Transport:     t.sender.Name(),
		Sent:          err == nil,
	})

	return sample
}
