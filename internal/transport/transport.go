// Package transport defines the outbound telemetry channel shared by the TCP,
// BLE-Notify and Broadcast-Radio variants.
//
// Exactly one variant is active in a running firmware. It is chosen once at
// startup from configuration (see Kind) and never switched afterwards.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Transport is the contract every telemetry variant implements.
type Transport interface {
	// Name identifies the variant in logs, metrics and events.
	Name() string

	// Init brings up the underlying link and arms link-event callbacks.
	// It is called exactly once at startup; an error is fatal.
	Init(ctx context.Context) error

	// Send transmits one short text message on a best-effort basis.
	// It never blocks for longer than a short bounded interval and returns
	// ErrNoRecipient without any I/O when nobody is listening.
	Send(msg []byte) (int, error)

	// Close tears down the link.
	Close() error
}

// StateQuerier is implemented by variants that answer pull-style reads of the
// actuator state, independent of the push path.
type StateQuerier interface {
	QueryState() string
}

// ActuatorReader exposes a copy of the actuator state to transports.
type ActuatorReader interface {
	IsOn() bool
}

// Sentinel errors returned by Send. All of them are transient.
var (
	ErrNoRecipient   = errors.New("no current recipient")
	ErrNotSubscribed = errors.New("recipient not subscribed to notifications")
	ErrRejected      = errors.New("rejected by link")
	ErrClosed        = errors.New("transport closed")
)

// Reason maps a Send error to a short label used in metrics and events.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoRecipient):
		return "no_recipient"
	case errors.Is(err, ErrNotSubscribed):
		return "not_subscribed"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "error"
	}
}

// StateText renders the actuator state the way every variant puts it on the wire.
func StateText(on bool) string {
	if on {
		return "LED:ON"
	}
	return "LED:OFF"
}

// Truncate caps msg at limit bytes. The second result reports whether
// anything was cut.
func Truncate(msg []byte, limit int) ([]byte, bool) {
	if limit < 0 {
		limit = 0
	}
	if len(msg) <= limit {
		return msg, false
	}
	return msg[:limit], true
}

// Kind selects the transport variant.
type Kind string

// Transport variants.
const (
	KindTCP       Kind = "tcp"
	KindBLE       Kind = "ble"
	KindBroadcast Kind = "broadcast"
)

// Kinds lists every supported variant.
func Kinds() []Kind {
	return []Kind{KindTCP, KindBLE, KindBroadcast}
}

// ParseKind validates a configured transport name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTCP, KindBLE, KindBroadcast:
		return k, nil
	case "espnow", "radio":
		return KindBroadcast, nil
	default:
		names := make([]string, 0, len(Kinds()))
		for _, k := range Kinds() {
			names = append(names, string(k))
		}
		return "", fmt.Errorf("unknown transport %q (want one of %s)", s, strings.Join(names, ", "))
	}
}
