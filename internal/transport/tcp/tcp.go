// Package tcp implements the telemetry transport as a single-client TCP server.
//
// The server listens on one port and tracks at most one client. A new
// connection always replaces the previous one, which is closed. Send never
// waits on a slow client for longer than the write timeout; any write error
// drops that client.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/edgelatency/internal/events"
	"github.com/smazurov/edgelatency/internal/transport"
)

// Defaults.
const (
	DefaultPort         = 5000
	DefaultWriteTimeout = 50 * time.Millisecond
)

// acceptRetryDelay paces the accept loop after a non-fatal Accept error
// such as EMFILE.
const acceptRetryDelay = 100 * time.Millisecond

// Transport states reported in events and the status API.
const (
	StateListening = "listening"
	StateHasClient = "has_client"
)

// Config configures the TCP transport.
type Config struct {
	// Addr is the listen address, e.g. ":5000".
	Addr         string
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Bus          *events.Bus
}

// Transport is the TCP variant of transport.Transport.
type Transport struct {
	addr         string
	writeTimeout time.Duration
	logger       *slog.Logger
	bus          *events.Bus

	listener  net.Listener
	recipient transport.Recipient[net.Conn]
	cancel    context.CancelFunc
	closed    atomic.Bool
	wg        sync.WaitGroup

	// accepted runs between Accept and Attach; tests use it to interleave Close.
	accepted func()
}

// New creates a TCP transport. Init starts listening.
func New(cfg Config) *Transport {
	if cfg.Addr == "" {
		cfg.Addr = fmt.Sprintf(":%d", DefaultPort)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{
		addr:         cfg.Addr,
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
		bus:          cfg.Bus,
	}
}

// Name implements transport.Transport.
func (t *Transport) Name() string {
	return string(transport.KindTCP)
}

// Init opens the listening socket and starts accepting clients.
func (t *Transport) Init(ctx context.Context) error {
	if t.listener != nil {
		return errors.New("tcp transport already initialized")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.addr, err)
	}
	t.listener = listener

	ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go t.acceptLoop(ctx)

	t.logger.Info("TCP telemetry server listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listen address, or nil before Init.
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// State returns listening or has_client.
func (t *Transport) State() string {
	if t.recipient.Handle().Active() {
		return StateHasClient
	}
	return StateListening
}

// Recipient returns the current client handle.
func (t *Transport) Recipient() transport.Handle {
	return t.recipient.Handle()
}

// Send writes msg to the current client. A write error or timeout drops the
// client; no retry is attempted.
func (t *Transport) Send(msg []byte) (int, error) {
	if t.closed.Load() {
		return 0, transport.ErrClosed
	}
	p := t.recipient.Current()
	if p == nil {
		return 0, transport.ErrNoRecipient
	}

	if err := p.Conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		t.drop(p, "send_failed")
		return 0, fmt.Errorf("client %d: %w", p.ID, err)
	}
	n, err := p.Conn.Write(msg)
	if err != nil {
		t.drop(p, "send_failed")
		return n, fmt.Errorf("client %d: %w", p.ID, err)
	}
	return n, nil
}

// Close stops accepting, disconnects the client and waits for goroutines.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t.cancel != nil {
		t.cancel()
	}

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	if p := t.recipient.Clear(); p != nil {
		_ = p.Conn.Close()
	}

	t.wg.Wait()
	t.logger.Info("TCP telemetry server stopped")
	return err
}

func (t *Transport) acceptLoop(ctx context.Context) {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn("Accept failed", "error", err, "retry_in", acceptRetryDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		if t.accepted != nil {
			t.accepted()
		}

		cur, prev := t.recipient.Attach(conn)
		// Close may have cleared the slot between Accept and Attach.
		if t.closed.Load() {
			t.recipient.Detach(cur)
			_ = conn.Close()
			return
		}

		reason := "accepted"
		if prev != nil {
			reason = "superseded"
			t.logger.Info("Replacing existing client",
				"old_client", prev.ID,
				"old_remote", prev.Conn.RemoteAddr().String())
			_ = prev.Conn.Close()
		}

		t.logger.Info("Client connected", "client", cur.ID, "remote", conn.RemoteAddr().String())
		t.bus.Publish(events.RecipientChangedEvent{
			Transport:   t.Name(),
			State:       StateHasClient,
			RecipientID: cur.ID,
			Reason:      reason,
		})

		t.wg.Add(1)
		go t.watch(cur)
	}
}

// watch reads and discards inbound data until the client goes away.
func (t *Transport) watch(p *transport.Peer[net.Conn]) {
	defer t.wg.Done()

	buf := make([]byte, 256)
	for {
		if _, err := p.Conn.Read(buf); err != nil {
			t.drop(p, "disconnected")
			return
		}
	}
}

// drop closes p and, if it is still the current client, returns to listening.
func (t *Transport) drop(p *transport.Peer[net.Conn], reason string) {
	_ = p.Conn.Close()
	if !t.recipient.Detach(p) {
		return
	}
	t.logger.Info("Client dropped", "client", p.ID, "reason", reason)
	t.bus.Publish(events.RecipientChangedEvent{
		Transport: t.Name(),
		State:     StateListening,
		Reason:    reason,
	})
}
