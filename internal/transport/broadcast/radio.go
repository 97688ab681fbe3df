package broadcast

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// MaxFramePayload is the largest payload a single frame carries.
const MaxFramePayload = 250

// Defaults for the UDP radio.
const (
	DefaultChannel  uint8 = 5
	DefaultBasePort       = 47000
)

// Radio errors.
var (
	ErrNotConfigured = errors.New("radio not configured")
	ErrUnknownPeer   = errors.New("peer not registered")
	ErrFrameTooLarge = errors.New("frame exceeds maximum payload")
)

// Addr is a 6-byte link-layer address.
type Addr [6]byte

// BroadcastAddr addresses every listener on the channel.
var BroadcastAddr = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (a Addr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// Radio is the connectionless link driver.
type Radio interface {
	// Configure brings the radio up on a channel.
	Configure(channel uint8) error
	// AddPeer registers a destination before frames can be sent to it.
	AddPeer(addr Addr) error
	// Tx queues one frame. An error means the local radio rejected it.
	Tx(addr Addr, frame []byte) error
	Close() error
}

// UDPConfig configures the UDP radio.
type UDPConfig struct {
	// BasePort plus the channel number gives the destination port.
	BasePort int
	// Host overrides the IPv4 limited broadcast address, mainly for tests.
	Host string
}

// UDP is a Radio that emits frames as IPv4 broadcast datagrams. Each channel
// maps to its own port so listeners can pick a channel.
type UDP struct {
	cfg UDPConfig

	mu    sync.Mutex
	conn  *net.UDPConn
	dest  *net.UDPAddr
	peers map[Addr]struct{}
}

// NewUDP creates a UDP radio.
func NewUDP(cfg UDPConfig) *UDP {
	if cfg.BasePort == 0 {
		cfg.BasePort = DefaultBasePort
	}
	return &UDP{cfg: cfg, peers: make(map[Addr]struct{})}
}

// Port returns the UDP port used for channel.
func Port(basePort int, channel uint8) int {
	return basePort + int(channel)
}

// Configure implements Radio.
func (u *UDP) Configure(channel uint8) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	ip := net.IPv4bcast
	if u.cfg.Host != "" {
		if ip = net.ParseIP(u.cfg.Host); ip == nil {
			return fmt.Errorf("invalid broadcast host %q", u.cfg.Host)
		}
	}

	// Go enables SO_BROADCAST on datagram sockets.
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("failed to open radio socket: %w", err)
	}
	if u.conn != nil {
		_ = u.conn.Close()
	}
	u.conn = conn
	u.dest = &net.UDPAddr{IP: ip, Port: Port(u.cfg.BasePort, channel)}
	return nil
}

// AddPeer implements Radio.
func (u *UDP) AddPeer(addr Addr) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.peers[addr] = struct{}{}
	return nil
}

// Tx implements Radio. Only the broadcast peer is routable.
func (u *UDP) Tx(addr Addr, frame []byte) error {
	u.mu.Lock()
	conn, dest := u.conn, u.dest
	_, known := u.peers[addr]
	u.mu.Unlock()

	switch {
	case conn == nil:
		return ErrNotConfigured
	case !known:
		return fmt.Errorf("%w: %s", ErrUnknownPeer, addr)
	case addr != BroadcastAddr:
		return fmt.Errorf("%w: %s is not routable over udp", ErrUnknownPeer, addr)
	case len(frame) > MaxFramePayload:
		return ErrFrameTooLarge
	}

	if _, err := conn.WriteToUDP(frame, dest); err != nil {
		return fmt.Errorf("radio tx: %w", err)
	}
	return nil
}

// Close implements Radio.
func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}

// Frame is one transmission recorded by Stub.
type Frame struct {
	Addr    Addr
	Payload []byte
}

// Stub is an in-memory Radio for hosts without a radio.
type Stub struct {
	mu      sync.Mutex
	channel uint8
	peers   map[Addr]struct{}
	frames  []Frame
	fail    error
}

// NewStub creates an unconfigured stub radio.
func NewStub() *Stub {
	return &Stub{peers: make(map[Addr]struct{})}
}

// Configure implements Radio.
func (s *Stub) Configure(channel uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = channel
	return nil
}

// AddPeer implements Radio.
func (s *Stub) AddPeer(addr Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[addr] = struct{}{}
	return nil
}

// Tx implements Radio.
func (s *Stub) Tx(addr Addr, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.peers[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, addr)
	}
	if len(frame) > MaxFramePayload {
		return ErrFrameTooLarge
	}
	s.frames = append(s.frames, Frame{Addr: addr, Payload: append([]byte(nil), frame...)})
	return nil
}

// Close implements Radio.
func (s *Stub) Close() error {
	return nil
}

// FailWith makes every following Tx return err. Nil clears the failure.
func (s *Stub) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Channel returns the configured channel.
func (s *Stub) Channel() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Frames returns a copy of the transmitted frames.
func (s *Stub) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}
