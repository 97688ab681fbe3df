// Package ble implements the telemetry transport as a BLE peripheral that
// pushes each message as a GATT notification.
package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/edgelatency/internal/events"
	"github.com/smazurov/edgelatency/internal/transport"
)

// Transport states.
const (
	StateAdvertising = "advertising"
	StateConnected   = "connected"
	StateSubscribed  = "subscribed"
)

// DefaultAdvertiseRetry is the fixed delay between failed advertising restarts.
const DefaultAdvertiseRetry = time.Second

// Config configures the BLE transport.
type Config struct {
	Stack      Stack
	DeviceName string

	// MTU is the assumed ATT MTU until the stack reports a negotiated one.
	MTU            int
	AdvertiseRetry time.Duration
	State          transport.ActuatorReader
	Logger         *slog.Logger
	Bus            *events.Bus
}

// session is the per-connection state.
type session struct {
	conn       ConnID
	subscribed atomic.Bool
	mtu        atomic.Int32
}

// Transport is the BLE-Notify variant of transport.Transport.
type Transport struct {
	stack      Stack
	name       string
	defaultMTU int
	retry      time.Duration
	state      transport.ActuatorReader
	logger     *slog.Logger
	bus        *events.Bus
	service    Service

	recipient transport.Recipient[*session]
	ctx       context.Context
	cancel    context.CancelFunc
	retrying  atomic.Bool
	wg        sync.WaitGroup
}

// New creates a BLE transport. State answers characteristic reads.
func New(cfg Config) *Transport {
	if cfg.DeviceName == "" {
		cfg.DeviceName = DefaultDeviceName
	}
	if cfg.MTU <= attHeaderSize {
		cfg.MTU = DefaultMTU
	}
	if cfg.AdvertiseRetry <= 0 {
		cfg.AdvertiseRetry = DefaultAdvertiseRetry
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	t := &Transport{
		stack:      cfg.Stack,
		name:       cfg.DeviceName,
		defaultMTU: cfg.MTU,
		retry:      cfg.AdvertiseRetry,
		state:      cfg.State,
		logger:     cfg.Logger,
		bus:        cfg.Bus,
	}
	t.service = Service{
		UUID:           ServiceUUID,
		Characteristic: CharacteristicUUID,
		Read:           func() []byte { return []byte(t.QueryState()) },
	}
	return t
}

// Name implements transport.Transport.
func (t *Transport) Name() string {
	return string(transport.KindBLE)
}

// Init enables the stack, registers the GATT service and starts advertising.
func (t *Transport) Init(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.stack.SetLinkHandler(t.handleLinkEvent)
	if err := t.stack.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE stack: %w", err)
	}
	if err := t.stack.Register(t.service); err != nil {
		return fmt.Errorf("failed to register GATT service: %w", err)
	}
	if err := t.stack.Advertise(t.name, t.service); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}

	t.logger.Info("BLE peripheral advertising",
		"name", t.name,
		"service", fmt.Sprintf("0x%04X", ServiceUUID),
		"characteristic", fmt.Sprintf("0x%04X", CharacteristicUUID))
	return nil
}

// QueryState answers a read of the characteristic.
func (t *Transport) QueryState() string {
	if t.state == nil {
		return transport.StateText(false)
	}
	return transport.StateText(t.state.IsOn())
}

// State returns advertising, connected or subscribed.
func (t *Transport) State() string {
	p := t.recipient.Current()
	switch {
	case p == nil:
		return StateAdvertising
	case p.Conn.subscribed.Load():
		return StateSubscribed
	default:
		return StateConnected
	}
}

// Recipient returns the current connection handle.
func (t *Transport) Recipient() transport.Handle {
	return t.recipient.Handle()
}

// Send notifies msg to the connected, subscribed central. Messages longer than
// the MTU allows are truncated.
func (t *Transport) Send(msg []byte) (int, error) {
	p := t.recipient.Current()
	if p == nil {
		return 0, transport.ErrNoRecipient
	}
	s := p.Conn
	if !s.subscribed.Load() {
		return 0, transport.ErrNotSubscribed
	}

	payload, cut := transport.Truncate(msg, int(s.mtu.Load())-attHeaderSize)
	if cut {
		t.logger.Debug("Truncated notification", "len", len(msg), "mtu", s.mtu.Load())
	}
	if err := t.stack.Notify(s.conn, payload); err != nil {
		return 0, fmt.Errorf("%w: notify conn %d: %w", transport.ErrRejected, s.conn, err)
	}
	return len(payload), nil
}

// Close stops advertising retries and shuts the stack down.
func (t *Transport) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.recipient.Clear()
	return t.stack.Close()
}

func (t *Transport) handleLinkEvent(e LinkEvent) {
	switch e.Kind {
	case EventConnect:
		s := &session{conn: e.Conn}
		s.mtu.Store(int32(t.defaultMTU))
		cur, prev := t.recipient.Attach(s)
		if prev != nil {
			t.logger.Warn("New connection replaced existing one", "old_conn", prev.Conn.conn, "conn", e.Conn)
		}
		t.logger.Info("Central connected", "conn", e.Conn)
		t.publish(cur.ID, "connected")

	case EventConnectFailed:
		t.logger.Warn("Connection attempt failed", "error", e.Err)
		t.restartAdvertising()

	case EventDisconnect:
		if p := t.current(e.Conn); p != nil && t.recipient.Detach(p) {
			t.logger.Info("Central disconnected", "conn", e.Conn)
			t.publish(0, "disconnected")
		}
		t.restartAdvertising()

	case EventSubscribe, EventUnsubscribe:
		p := t.current(e.Conn)
		if p == nil {
			return
		}
		on := e.Kind == EventSubscribe
		p.Conn.subscribed.Store(on)
		t.logger.Info("Notification subscription changed", "conn", e.Conn, "subscribed", on)
		t.publish(p.ID, e.Kind.String())

	case EventMTU:
		if p := t.current(e.Conn); p != nil && e.MTU > attHeaderSize {
			p.Conn.mtu.Store(int32(e.MTU))
			t.logger.Debug("MTU updated", "conn", e.Conn, "mtu", e.MTU)
		}
	}
}

// current returns the current peer if it belongs to conn.
func (t *Transport) current(conn ConnID) *transport.Peer[*session] {
	p := t.recipient.Current()
	if p == nil || p.Conn.conn != conn {
		return nil
	}
	return p
}

// restartAdvertising resumes advertising, retrying at a fixed interval until
// it succeeds or the transport is closed.
func (t *Transport) restartAdvertising() {
	if t.ctx != nil && t.ctx.Err() != nil {
		return
	}
	err := t.stack.Advertise(t.name, t.service)
	if err == nil {
		t.logger.Debug("Advertising restarted")
		return
	}
	t.logger.Error("Failed to restart advertising", "error", err, "retry_in", t.retry)

	if t.ctx == nil || !t.retrying.CompareAndSwap(false, true) {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.retrying.Store(false)

		ticker := time.NewTicker(t.retry)
		defer ticker.Stop()
		for {
			select {
			case <-t.ctx.Done():
				return
			case <-ticker.C:
			}
			err := t.stack.Advertise(t.name, t.service)
			if err == nil {
				t.logger.Info("Advertising restarted after retry")
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			t.logger.Error("Failed to restart advertising", "error", err, "retry_in", t.retry)
		}
	}()
}

func (t *Transport) publish(id uint32, reason string) {
	t.bus.Publish(events.RecipientChangedEvent{
		Transport:   t.Name(),
		State:       t.State(),
		RecipientID: id,
		Reason:      reason,
	})
}
