package ble

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/smazurov/edgelatency/internal/transport"
)

func connectedSignal(path string, connected bool) *dbus.Signal {
	return &dbus.Signal{
		Path: dbus.ObjectPath(path),
		Name: propertiesChanged,
		Body: []interface{}{
			deviceIface,
			map[string]dbus.Variant{"Connected": dbus.MakeVariant(connected)},
			[]string{},
		},
	}
}

const (
	devA = "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_01"
	devB = "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_02"
)

func TestLinkTracker_Signals(t *testing.T) {
	tests := []struct {
		name string
		sig  *dbus.Signal
	}{
		{"other member", &dbus.Signal{Path: devA, Name: propertiesIface + ".GetAll", Body: []interface{}{deviceIface, map[string]dbus.Variant{}}}},
		{"outside bluez", connectedSignal("/org/freedesktop/NetworkManager/Devices/1", true)},
		{"adapter change", &dbus.Signal{
			Path: "/org/bluez/hci0",
			Name: propertiesChanged,
			Body: []interface{}{"org.bluez.Adapter1", map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}, []string{}},
		}},
		{"rssi only", &dbus.Signal{
			Path: devA,
			Name: propertiesChanged,
			Body: []interface{}{deviceIface, map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-60))}, []string{}},
		}},
		{"short body", &dbus.Signal{Path: devA, Name: propertiesChanged, Body: []interface{}{deviceIface}}},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newLinkTracker().signal(tt.sig); len(got) != 0 {
				t.Errorf("signal() = %+v, want none", got)
			}
		})
	}
}

func TestLinkTracker_Lifecycle(t *testing.T) {
	l := newLinkTracker()

	got := l.signal(connectedSignal(devA, true))
	if len(got) != 1 || got[0].Kind != EventConnect || got[0].Conn != 1 {
		t.Fatalf("connect = %+v", got)
	}
	if again := l.signal(connectedSignal(devA, true)); len(again) != 0 {
		t.Errorf("repeated Connected=true = %+v, want none", again)
	}

	if got := l.notify(true); len(got) != 1 || got[0] != (LinkEvent{Kind: EventSubscribe, Conn: 1}) {
		t.Errorf("StartNotify = %+v", got)
	}
	if got := l.notify(true); len(got) != 0 {
		t.Errorf("second StartNotify = %+v, want none", got)
	}

	got = l.signal(connectedSignal(devB, true))
	if len(got) != 2 || got[0] != (LinkEvent{Kind: EventConnect, Conn: 2}) || got[1] != (LinkEvent{Kind: EventSubscribe, Conn: 2}) {
		t.Errorf("second connect while notifying = %+v", got)
	}

	if got := l.signal(connectedSignal(devA, false)); len(got) != 1 || got[0] != (LinkEvent{Kind: EventDisconnect, Conn: 1}) {
		t.Errorf("stale disconnect = %+v", got)
	}
	if got := l.notify(false); len(got) != 1 || got[0] != (LinkEvent{Kind: EventUnsubscribe, Conn: 2}) {
		t.Errorf("StopNotify = %+v", got)
	}
	if got := l.signal(connectedSignal(devB, false)); len(got) != 1 || got[0] != (LinkEvent{Kind: EventDisconnect, Conn: 2}) {
		t.Errorf("disconnect = %+v", got)
	}
	if got := l.signal(connectedSignal(devB, false)); len(got) != 0 {
		t.Errorf("unknown disconnect = %+v, want none", got)
	}
}

func TestLinkTracker_NotifyBeforeConnect(t *testing.T) {
	l := newLinkTracker()
	if got := l.notify(true); len(got) != 0 {
		t.Errorf("StartNotify without a connection = %+v", got)
	}
	got := l.signal(connectedSignal(devA, true))
	if len(got) != 2 || got[1].Kind != EventSubscribe {
		t.Errorf("connect after StartNotify = %+v, want connect+subscribe", got)
	}

	// The last disconnect clears the notify state.
	l.signal(connectedSignal(devA, false))
	if got := l.signal(connectedSignal(devB, true)); len(got) != 1 {
		t.Errorf("fresh connect = %+v, want connect only", got)
	}
}

func TestGattCharacteristic(t *testing.T) {
	var on []bool
	c := &gattCharacteristic{
		read:   func() []byte { return []byte("LED:OFF") },
		notify: func(v bool) { on = append(on, v) },
	}

	v, derr := c.ReadValue(nil)
	if derr != nil || string(v) != "LED:OFF" {
		t.Errorf("ReadValue() = %q, %v", v, derr)
	}
	if derr := c.WriteValue([]byte("x"), nil); derr == nil {
		t.Error("WriteValue should be rejected")
	}
	_ = c.StartNotify()
	_ = c.StopNotify()
	if len(on) != 2 || !on[0] || on[1] {
		t.Errorf("notify calls = %v", on)
	}

	empty := &gattCharacteristic{}
	if v, _ := empty.ReadValue(nil); len(v) != 0 {
		t.Errorf("ReadValue() without a reader = %q", v)
	}
}

func TestNewGattApp(t *testing.T) {
	app := newGattApp("00001815-0000-1000-8000-00805f9b34fb", "00002a56-0000-1000-8000-00805f9b34fb")
	objs, derr := app.GetManagedObjects()
	if derr != nil {
		t.Fatal(derr)
	}
	char := objs[gattCharPath][gattCharIface]
	if char["Service"].Value() != gattServicePath {
		t.Errorf("characteristic service = %v", char["Service"])
	}
	if flags, _ := char["Flags"].Value().([]string); len(flags) != 2 || flags[0] != "read" || flags[1] != "notify" {
		t.Errorf("flags = %v", char["Flags"])
	}
	if primary, _ := objs[gattServicePath][gattServiceIface]["Primary"].Value().(bool); !primary {
		t.Error("service should be primary")
	}
}

// bluezModel is a Stack with BlueZ's semantics: link events come from
// D-Bus signals and notify calls through linkTracker, reads go through the
// exported characteristic, and notifications overwrite the Value property.
type bluezModel struct {
	links *linkTracker

	mu      sync.Mutex
	handler func(LinkEvent)
	char    *gattCharacteristic
	value   []byte
}

func (b *bluezModel) SetLinkHandler(h func(LinkEvent)) { b.handler = h }
func (b *bluezModel) Enable() error { return nil }
func (b *bluezModel) Advertise(string, Service) error { return nil }
func (b *bluezModel) Close() error { return nil }

func (b *bluezModel) Register(svc Service) error {
	b.char = &gattCharacteristic{
		read:   svc.Read,
		notify: func(on bool) { b.deliver(b.links.notify(on)) },
	}
	return nil
}

func (b *bluezModel) Notify(_ ConnID, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = append([]byte(nil), payload...)
	return nil
}

func (b *bluezModel) deliver(events []LinkEvent) {
	for _, e := range events {
		b.handler(e)
	}
}

func (b *bluezModel) read() string {
	v, _ := b.char.ReadValue(nil)
	return string(v)
}

type switchState struct{ on atomic.Bool }

func (s *switchState) IsOn() bool { return s.on.Load() }

func TestBlueZLinks_DriveTransport(t *testing.T) {
	stack := &bluezModel{links: newLinkTracker()}
	state := &switchState{}
	tr := New(Config{Stack: stack, State: state})
	if err := tr.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	stack.deliver(stack.links.signal(connectedSignal(devA, true)))
	if tr.State() != StateConnected {
		t.Fatalf("State() = %q after Connected=true, want connected", tr.State())
	}
	if _, err := tr.Send([]byte("LED:ON\n")); !errors.Is(err, transport.ErrNotSubscribed) {
		t.Errorf("Send() before StartNotify = %v", err)
	}

	_ = stack.char.StartNotify()
	if tr.State() != StateSubscribed {
		t.Fatalf("State() = %q after StartNotify, want subscribed", tr.State())
	}

	state.on.Store(true)
	if _, err := tr.Send([]byte("LED:ON cycles:1000 time:6250.00ns (0.006250ms)\n")); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if got := string(stack.value); got != "LED:ON cycles:1000 t" {
		t.Errorf("notified value = %q, want the line cut to MTU-3", got)
	}
	// Notifications replace the value, reads still answer from the actuator.
	if got := stack.read(); got != "LED:ON" {
		t.Errorf("read while subscribed = %q, want LED:ON", got)
	}

	stack.deliver(stack.links.signal(connectedSignal(devA, false)))
	if tr.State() != StateAdvertising {
		t.Errorf("State() = %q after Connected=false, want advertising", tr.State())
	}
	state.on.Store(false)
	if got := stack.read(); got != "LED:OFF" {
		t.Errorf("read with nobody subscribed = %q, want LED:OFF", got)
	}
}
