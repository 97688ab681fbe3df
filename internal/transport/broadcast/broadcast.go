// Package broadcast implements the connectionless telemetry transport.
//
// Every message is transmitted to the broadcast address whether or not anyone
// is listening. There is no recipient tracking.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/smazurov/edgelatency/internal/transport"
)

// Config configures the broadcast transport.
type Config struct {
	Radio   Radio
	Channel uint8
	Logger  *slog.Logger
}

// Transport is the Broadcast-Radio variant of transport.Transport.
type Transport struct {
	radio   Radio
	channel uint8
	logger  *slog.Logger
	ready   atomic.Bool
}

// New creates a broadcast transport over radio.
func New(cfg Config) *Transport {
	if cfg.Channel == 0 {
		cfg.Channel = DefaultChannel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{radio: cfg.Radio, channel: cfg.Channel, logger: cfg.Logger}
}

// Name implements transport.Transport.
func (t *Transport) Name() string {
	return string(transport.KindBroadcast)
}

// Init configures the radio channel and registers the broadcast peer once.
func (t *Transport) Init(_ context.Context) error {
	if err := t.radio.Configure(t.channel); err != nil {
		return fmt.Errorf("failed to configure radio on channel %d: %w", t.channel, err)
	}
	if err := t.radio.AddPeer(BroadcastAddr); err != nil {
		return fmt.Errorf("failed to register broadcast peer: %w", err)
	}
	t.ready.Store(true)
	t.logger.Info("Broadcast radio ready", "channel", t.channel, "peer", BroadcastAddr.String())
	return nil
}

// Channel returns the radio channel.
func (t *Transport) Channel() uint8 {
	return t.channel
}

// Send transmits msg, truncated to MaxFramePayload. It fails only when the
// local radio rejects the frame.
func (t *Transport) Send(msg []byte) (int, error) {
	if !t.ready.Load() {
		return 0, transport.ErrClosed
	}
	payload, cut := transport.Truncate(msg, MaxFramePayload)
	if cut {
		t.logger.Debug("Truncated broadcast payload", "len", len(msg), "max", MaxFramePayload)
	}
	if err := t.radio.Tx(BroadcastAddr, payload); err != nil {
		return 0, fmt.Errorf("%w: %w", transport.ErrRejected, err)
	}
	return len(payload), nil
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	if !t.ready.Swap(false) {
		return nil
	}
	return t.radio.Close()
}
