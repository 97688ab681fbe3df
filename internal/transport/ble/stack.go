package ble

// GATT identifiers.
const (
	ServiceUUID        uint16 = 0x1815 // Automation IO
	CharacteristicUUID uint16 = 0x2A56 // Digital
)

// Link defaults.
const (
	DefaultDeviceName = "EDGE_LED"
	DefaultMTU        = 23
	// attHeaderSize is the ATT notification overhead subtracted from the MTU.
	attHeaderSize = 3
)

// ConnID identifies a connection on the stack.
type ConnID uint16

// EventKind is the type of a link event.
type EventKind int

// Link events delivered by a Stack.
const (
	EventConnect EventKind = iota + 1
	EventConnectFailed
	EventDisconnect
	EventSubscribe
	EventUnsubscribe
	EventMTU
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventConnectFailed:
		return "connect_failed"
	case EventDisconnect:
		return "disconnect"
	case EventSubscribe:
		return "subscribe"
	case EventUnsubscribe:
		return "unsubscribe"
	case EventMTU:
		return "mtu"
	default:
		return "unknown"
	}
}

// LinkEvent is a connection lifecycle notification from the stack.
type LinkEvent struct {
	Kind EventKind
	Conn ConnID
	// MTU is set for EventMTU.
	MTU int
	// Err is set for EventConnectFailed.
	Err error
}

// Service describes the single GATT service exposed by the peripheral.
type Service struct {
	UUID           uint16
	Characteristic uint16
	// Read answers characteristic reads. Stacks call it on every read so the
	// answer tracks the actuator, independent of the last notification.
	Read func() []byte
}

// Stack is the BLE host stack the transport drives.
type Stack interface {
	Enable() error
	Register(svc Service) error
	// Advertise starts (or restarts) connectable advertising.
	Advertise(name string, svc Service) error
	Notify(conn ConnID, payload []byte) error
	// SetLinkHandler installs the link event callback. It is called before Enable.
	SetLinkHandler(handler func(LinkEvent))
	Close() error
}
