package actuation

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/edgelatency/internal/clock"
	"github.com/smazurov/edgelatency/internal/events"
	"github.com/smazurov/edgelatency/internal/led"
	"github.com/smazurov/edgelatency/internal/transport"
)

type recordingIndicator struct {
	mu     sync.Mutex
	colors []led.Color
	err    error
}

func (r *recordingIndicator) SetColor(c led.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.colors = append(r.colors, c)
	return r.err
}

func (r *recordingIndicator) Name() string { return "recording" }

func (r *recordingIndicator) Colors() []led.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]led.Color(nil), r.colors...)
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *recordingSender) Name() string { return "test" }

func (r *recordingSender) Send(msg []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, string(msg))
	if r.err != nil {
		return 0, r.err
	}
	return len(msg), nil
}

func (r *recordingSender) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func newTestTask(c clock.Clock, ind led.Indicator, s Sender, style Style) *Task {
	return NewTask(Config{
		Clock:     c,
		Indicator: ind,
		Sender:    s,
		Style:     style,
	})
}

func TestNotifier_Coalesces(t *testing.T) {
	n := NewNotifier()
	n.Signal()
	n.Signal()
	n.Signal()

	if n.Signals() != 3 {
		t.Errorf("Signals() = %d, want 3", n.Signals())
	}
	if n.Coalesced() != 2 {
		t.Errorf("Coalesced() = %d, want 2", n.Coalesced())
	}

	select {
	case <-n.C():
	default:
		t.Fatal("expected a pending wake-up")
	}
	select {
	case <-n.C():
		t.Fatal("expected no second wake-up")
	default:
	}
}

func TestDetector_StoresLatestTimestamp(t *testing.T) {
	c := clock.NewManual(clock.DefaultHz, 100)
	stamp := &EdgeTimestamp{}
	d := NewDetector(c, stamp, NewNotifier())

	d.OnEdge()
	c.Advance(50)
	d.OnEdge()

	if got := stamp.Load(); got != 150 {
		t.Errorf("timestamp = %d, want 150 (latest edge wins)", got)
	}
}

func TestTask_ProcessAlternatesFromOff(t *testing.T) {
	c := clock.NewManual(clock.DefaultHz, 0)
	ind := &recordingIndicator{}
	s := &recordingSender{}
	task := newTestTask(c, ind, s, StyleShort)

	if task.State().IsOn() {
		t.Fatal("state should start off")
	}

	want := []bool{true, false, true, false}
	for i, on := range want {
		task.detector.OnEdge()
		<-task.notifier.C()
		sample := task.process()
		if sample.On != on {
			t.Errorf("event %d: On = %v, want %v", i, sample.On, on)
		}
		if task.State().IsOn() != on {
			t.Errorf("event %d: IsOn() = %v, want %v", i, task.State().IsOn(), on)
		}
	}

	msgs := s.Messages()
	wantMsgs := []string{"LED:ON\n", "LED:OFF\n", "LED:ON\n", "LED:OFF\n"}
	if strings.Join(msgs, "") != strings.Join(wantMsgs, "") {
		t.Errorf("messages = %q, want %q", msgs, wantMsgs)
	}

	colors := ind.Colors()
	if len(colors) != 4 || colors[0] != led.Red(32) || colors[1] != led.Off {
		t.Errorf("colors = %v, want alternating red(32)/off", colors)
	}
}

func TestTask_ElapsedCycles(t *testing.T) {
	tests := []struct {
		name  string
		edge  uint32
		delay uint32
	}{
		{"simple", 5000, 1000},
		{"wraparound", math.MaxUint32 - 400, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewManual(clock.DefaultHz, tt.edge)
			s := &recordingSender{}
			task := newTestTask(c, &recordingIndicator{}, s, StyleLatency)

			task.detector.OnEdge()
			c.Advance(tt.delay)
			sample := task.process()

			if sample.ElapsedCycles != tt.delay {
				t.Errorf("ElapsedCycles = %d, want %d", sample.ElapsedCycles, tt.delay)
			}
			if !sample.On {
				t.Error("first processed event should turn the actuator on")
			}
			msgs := s.Messages()
			if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "LED:ON cycles:1000 ") {
				t.Errorf("message = %q", msgs)
			}
		})
	}
}

func TestTask_SendFailureDoesNotBlockActuation(t *testing.T) {
	c := clock.NewManual(clock.DefaultHz, 0)
	ind := &recordingIndicator{}
	s := &recordingSender{err: errors.New("link down")}
	bus := events.New()
	task := NewTask(Config{Clock: c, Indicator: ind, Sender: s, Bus: bus})

	failed := make(chan events.SendFailedEvent, 4)
	unsub := bus.Subscribe(func(e events.SendFailedEvent) { failed <- e })
	defer unsub()

	task.process()
	task.process()

	if task.State().IsOn() {
		t.Error("two processed events should leave the actuator off")
	}
	if len(ind.Colors()) != 2 {
		t.Errorf("indicator updates = %d, want 2", len(ind.Colors()))
	}

	select {
	case e := <-failed:
		if e.Reason != "error" || e.Transport != "test" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SendFailedEvent")
	}
}

func TestTask_IndicatorFailureIsSwallowed(t *testing.T) {
	c := clock.NewManual(clock.DefaultHz, 0)
	ind := &recordingIndicator{err: errors.New("write failed")}
	s := &recordingSender{err: transport.ErrNoRecipient}
	task := newTestTask(c, ind, s, StyleShort)

	sample := task.process()
	if !sample.On {
		t.Error("state should toggle even when the indicator fails")
	}
	if len(s.Messages()) != 1 {
		t.Error("telemetry should still be attempted")
	}
}

func TestTask_RunCoalescedBurst(t *testing.T) {
	c := clock.NewManual(clock.DefaultHz, 0)
	s := &recordingSender{}
	bus := events.New()
	task := NewTask(Config{Clock: c, Indicator: &recordingIndicator{}, Sender: s, Bus: bus})

	processed := make(chan events.ActuationEvent, 8)
	unsub := bus.Subscribe(func(e events.ActuationEvent) { processed <- e })
	defer unsub()

	// Two edges before the task wakes.
	task.Detector().OnEdge()
	c.Advance(10)
	task.Detector().OnEdge()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	select {
	case e := <-processed:
		if !e.On || e.Seq != 1 {
			t.Errorf("first event = %+v, want On=true Seq=1", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first event")
	}

	// Give a possible (not required) second wake a chance to land.
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}

	wakes := len(s.Messages())
	if wakes < 1 || wakes > 2 {
		t.Errorf("processed %d events for a 2-edge burst, want 1 or 2", wakes)
	}
	if want := wakes%2 == 1; task.State().IsOn() != want {
		t.Errorf("IsOn() = %v after %d events", task.State().IsOn(), wakes)
	}
}

func TestPeriodicTrigger(t *testing.T) {
	c := clock.NewManual(clock.DefaultHz, 0)
	n := NewNotifier()
	d := NewDetector(c, &EdgeTimestamp{}, n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPeriodicTrigger(5*time.Millisecond, d, nil)
	go p.Run(ctx)

	for i := range 3 {
		select {
		case <-n.C():
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for trigger %d", i)
		}
	}
}

func TestPeriodicTrigger_Disabled(t *testing.T) {
	n := NewNotifier()
	d := NewDetector(clock.NewManual(clock.DefaultHz, 0), &EdgeTimestamp{}, n)
	p := NewPeriodicTrigger(0, d, nil)
	if p.Enabled() {
		t.Fatal("zero interval should disable the trigger")
	}
	p.Run(context.Background())
	if n.Signals() != 0 {
		t.Errorf("disabled trigger signalled %d times", n.Signals())
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		sample LatencySample
		style  Style
		want   string
	}{
		{"short on", LatencySample{ElapsedCycles: 1000, On: true}, StyleShort, "LED:ON\n"},
		{"short off", LatencySample{On: false}, StyleShort, "LED:OFF\n"},
		{"latency", LatencySample{ElapsedCycles: 160, On: true}, StyleLatency,
			"LED:ON cycles:160 time:1000.00ns (0.001000ms)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Format(tt.sample, clock.DefaultHz, tt.style)); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseStyle(t *testing.T) {
	if s, err := ParseStyle(""); err != nil || s != StyleShort {
		t.Errorf("ParseStyle(\"\") = %q, %v", s, err)
	}
	if s, err := ParseStyle("Latency"); err != nil || s != StyleLatency {
		t.Errorf("ParseStyle(Latency) = %q, %v", s, err)
	}
	if _, err := ParseStyle("verbose"); err == nil {
		t.Error("expected error for unknown style")
	}
}
