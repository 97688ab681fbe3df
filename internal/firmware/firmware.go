// Package firmware assembles the latency pipeline: clock, indicator, edge
// source, actuation task, periodic trigger and the selected transport.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/edgelatency/internal/actuation"
	"github.com/smazurov/edgelatency/internal/clock"
	"github.com/smazurov/edgelatency/internal/events"
	"github.com/smazurov/edgelatency/internal/gpio"
	"github.com/smazurov/edgelatency/internal/led"
	"github.com/smazurov/edgelatency/internal/logging"
	"github.com/smazurov/edgelatency/internal/transport"
	"github.com/smazurov/edgelatency/internal/transport/ble"
	"github.com/smazurov/edgelatency/internal/transport/broadcast"
	"github.com/smazurov/edgelatency/internal/transport/tcp"
)

// Config selects and tunes every component.
type Config struct {
	Transport transport.Kind

	TCPPort         int
	TCPWriteTimeout time.Duration

	BLEDeviceName string
	BLEMTU        int

	BroadcastChannel  uint8
	BroadcastBasePort int
	// BroadcastHost overrides the limited broadcast address.
	BroadcastHost string

	// GPIOPin names the input pin. Empty runs on the periodic trigger alone;
	// gpio.ManualPin takes edges from Trigger only.
	GPIOPin         string
	TriggerInterval time.Duration
	ClockHz         uint32
	Format          actuation.Style

	LEDName       string
	LEDBrightness uint8
	StatusLEDName string
}

// Deps overrides hardware-facing components. Nil fields are built from Config.
type Deps struct {
	Clock      clock.Clock
	Indicator  led.Indicator
	StatusLED  led.Patterned
	EdgeSource gpio.EdgeSource
	BLEStack   ble.Stack
	Radio      broadcast.Radio
	Bus        *events.Bus
}

// Status is a snapshot of the running firmware.
type Status struct {
	On             bool   `json:"on" doc:"Actuator state"`
	StateText      string `json:"state_text" example:"LED:ON" doc:"State as sent on the wire"`
	Transport      string `json:"transport" example:"tcp"`
	TransportState string `json:"transport_state" example:"has_client"`
	RecipientID    uint32 `json:"recipient_id" doc:"Current recipient, 0 when none"`
	EdgesSignalled uint64 `json:"edges_signalled"`
	EdgesCoalesced uint64 `json:"edges_coalesced"`
	EdgeSource     string `json:"edge_source" example:"GPIO17"`
	Indicator      string `json:"indicator" example:"usr_led"`
}

// Firmware is the assembled system.
type Firmware struct {
	cfg       Config
	clock     clock.Clock
	indicator led.Indicator
	edges     gpio.EdgeSource
	transport transport.Transport
	state     *actuation.State
	task      *actuation.Task
	trigger   *actuation.PeriodicTrigger
	statusMgr *led.StatusManager
	bus       *events.Bus
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Build constructs every component. Failing to open a configured indicator
// or input pin is an error.
func Build(cfg Config, deps Deps) (*Firmware, error) {
	f := &Firmware{
		cfg:    cfg,
		bus:    deps.Bus,
		logger: logging.GetLogger("main"),
		state:  actuation.NewState(),
	}

	f.clock = deps.Clock
	if f.clock == nil {
		f.clock = clock.NewMonotonic(cfg.ClockHz)
	}

	f.indicator = deps.Indicator
	if f.indicator == nil {
		ind, err := led.New(cfg.LEDName, logging.GetLogger("led"))
		if err != nil {
			return nil, fmt.Errorf("indicator: %w", err)
		}
		f.indicator = ind
	}

	status := deps.StatusLED
	if status == nil && cfg.StatusLEDName != "" {
		s, err := led.OpenStatus(cfg.StatusLEDName, logging.GetLogger("led"))
		if err != nil {
			return nil, fmt.Errorf("status LED: %w", err)
		}
		status = s
	}
	if status != nil {
		f.statusMgr = led.NewStatusManager(status, f.bus, logging.GetLogger("led"))
	}

	t, err := f.newTransport(cfg, deps)
	if err != nil {
		return nil, err
	}
	f.transport = t

	onColor := led.Red(cfg.LEDBrightness)
	f.task = actuation.NewTask(actuation.Config{
		Clock:     f.clock,
		Indicator: f.indicator,
		Sender:    f.transport,
		State:     f.state,
		Style:     cfg.Format,
		OnColor:   onColor,
		Logger:    logging.GetLogger("actuation"),
		Bus:       f.bus,
	})
	f.trigger = actuation.NewPeriodicTrigger(cfg.TriggerInterval, f.task.Detector(), logging.GetLogger("actuation"))

	f.edges = deps.EdgeSource
	switch {
	case f.edges != nil, cfg.GPIOPin == "":
	case strings.EqualFold(cfg.GPIOPin, gpio.ManualPin):
		f.edges = &gpio.Manual{}
	default:
		pin, err := gpio.Open(cfg.GPIOPin, logging.GetLogger("gpio"))
		if err != nil {
			return nil, fmt.Errorf("edge source: %w", err)
		}
		f.edges = pin
	}

	return f, nil
}

func (f *Firmware) newTransport(cfg Config, deps Deps) (transport.Transport, error) {
	switch cfg.Transport {
	case transport.KindTCP:
		return tcp.New(tcp.Config{
			Addr:         fmt.Sprintf(":%d", cfg.TCPPort),
			WriteTimeout: cfg.TCPWriteTimeout,
			Logger:       logging.GetLogger("tcp"),
			Bus:          f.bus,
		}), nil

	case transport.KindBLE:
		stack := deps.BLEStack
		if stack == nil {
			stack = ble.NewBlueZ()
		}
		return ble.New(ble.Config{
			Stack:      stack,
			DeviceName: cfg.BLEDeviceName,
			MTU:        cfg.BLEMTU,
			State:      f.state,
			Logger:     logging.GetLogger("ble"),
			Bus:        f.bus,
		}), nil

	case transport.KindBroadcast:
		radio := deps.Radio
		if radio == nil {
			radio = broadcast.NewUDP(broadcast.UDPConfig{
				BasePort: cfg.BroadcastBasePort,
				Host:     cfg.BroadcastHost,
			})
		}
		return broadcast.New(broadcast.Config{
			Radio:   radio,
			Channel: cfg.BroadcastChannel,
			Logger:  logging.GetLogger("broadcast"),
		}), nil

	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// Start brings up the transport, binds the edge source and starts the
// trigger and the actuation task. Any error leaves nothing running.
func (f *Firmware) Start(ctx context.Context) error {
	if err := f.transport.Init(ctx); err != nil {
		return fmt.Errorf("transport %s init: %w", f.transport.Name(), err)
	}

	if f.edges != nil {
		if err := f.edges.Watch(f.task.Detector().OnEdge); err != nil {
			_ = f.transport.Close()
			return fmt.Errorf("edge source: %w", err)
		}
	} else if !f.trigger.Enabled() {
		f.logger.Warn("No GPIO pin and periodic trigger disabled; only manual triggers will produce events")
	}

	if f.statusMgr != nil {
		f.statusMgr.Start()
	}

	ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.trigger.Run(ctx)
	}()
	go func() {
		defer f.wg.Done()
		if err := f.task.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Error("Actuation task exited", "error", err)
		}
	}()

	f.logger.Info("Firmware started",
		"transport", f.transport.Name(),
		"indicator", f.indicator.Name(),
		"gpio", f.cfg.GPIOPin,
		"trigger_interval", f.cfg.TriggerInterval,
		"clock_hz", f.clock.Hz())
	return nil
}

// Stop halts the task, releases the edge source and closes the transport.
// The indicator is switched off.
func (f *Firmware) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}

	var errs []error
	if f.edges != nil {
		errs = append(errs, f.edges.Close())
	}
	f.wg.Wait()

	if f.statusMgr != nil {
		f.statusMgr.Stop()
	}
	errs = append(errs, f.transport.Close())
	if err := f.indicator.SetColor(led.Off); err != nil {
		f.logger.Warn("Failed to switch indicator off", "error", err)
	}

	f.logger.Info("Firmware stopped")
	return errors.Join(errs...)
}

// Trigger injects one edge. A manual edge source fires it; otherwise it goes
// straight to the detector, exactly like the input pin.
func (f *Firmware) Trigger() {
	if m, ok := f.edges.(*gpio.Manual); ok {
		m.Fire()
		return
	}
	f.task.Detector().OnEdge()
}

// State returns the actuator state.
func (f *Firmware) State() *actuation.State {
	return f.state
}

// Notifier exposes the edge notifier counters.
func (f *Firmware) Notifier() *actuation.Notifier {
	return f.task.Notifier()
}

// Transport returns the active transport.
func (f *Firmware) Transport() transport.Transport {
	return f.transport
}

// Status returns a snapshot for the status API.
func (f *Firmware) Status() Status {
	on := f.state.IsOn()
	st := Status{
		On:             on,
		StateText:      transport.StateText(on),
		Transport:      f.transport.Name(),
		TransportState: "broadcasting",
		EdgesSignalled: f.task.Notifier().Signals(),
		EdgesCoalesced: f.task.Notifier().Coalesced(),
		EdgeSource:     f.cfg.GPIOPin,
		Indicator:      f.indicator.Name(),
	}
	if s, ok := f.transport.(interface{ State() string }); ok {
		st.TransportState = s.State()
	}
	if r, ok := f.transport.(interface{ Recipient() transport.Handle }); ok {
		st.RecipientID = r.Recipient().ID()
	}
	if q, ok := f.transport.(transport.StateQuerier); ok {
		st.StateText = q.QueryState()
	}
	return st
}
