//go:build linux

package ble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"tinygo.org/x/bluetooth"
)

var errStackClosed = errors.New("bluez: stack closed")

// BlueZ is a Stack backed by the system BlueZ daemon.
//
// The adapter and advertising go through tinygo bluetooth. Link events and
// the GATT service talk to BlueZ over D-Bus directly: connections come from
// Device1.Connected changes, subscriptions from StartNotify/StopNotify on the
// exported characteristic. BlueZ does not expose MTU exchange or failed
// connection attempts, so the transport keeps its configured MTU.
type BlueZ struct {
	adapter *bluetooth.Adapter
	conn    *dbus.Conn
	props   *prop.Properties
	links   *linkTracker
	signals chan *dbus.Signal

	mu      sync.Mutex
	handler func(LinkEvent)

	// emitMu keeps link events in order across the signal watcher and
	// D-Bus method calls.
	emitMu sync.Mutex

	advMu  sync.Mutex
	adv    *bluetooth.Advertisement
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewBlueZ returns a stack on the default adapter.
func NewBlueZ() *BlueZ {
	return &BlueZ{
		adapter: bluetooth.DefaultAdapter,
		links:   newLinkTracker(),
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
	}
}

// SetLinkHandler implements Stack.
func (b *BlueZ) SetLinkHandler(handler func(LinkEvent)) {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
}

// Enable implements Stack. It powers the adapter up and starts watching
// device connection changes.
func (b *BlueZ) Enable() error {
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("bluez: %w", err)
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("bluez: system bus: %w", err)
	}
	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return fmt.Errorf("bluez: watch device properties: %w", err)
	}
	b.conn = conn
	conn.Signal(b.signals)

	b.wg.Add(1)
	go b.watch()
	return nil
}

// Register implements Stack. It exports the service as a GATT application
// and registers it with the adapter. svc.Read answers every central read.
func (b *BlueZ) Register(svc Service) error {
	if b.conn == nil {
		return errors.New("bluez: not enabled")
	}
	svcUUID := bluetooth.New16BitUUID(svc.UUID).String()
	charUUID := bluetooth.New16BitUUID(svc.Characteristic).String()

	props, err := prop.Export(b.conn, gattCharPath, map[string]map[string]*prop.Prop{
		gattCharIface: {
			"UUID":    {Value: charUUID},
			"Service": {Value: gattServicePath},
			"Flags":   {Value: charFlags},
			"Value":   {Value: []byte{}, Writable: true, Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return fmt.Errorf("export characteristic properties: %w", err)
	}
	b.props = props

	char := &gattCharacteristic{
		read: svc.Read,
		notify: func(on bool) {
			b.deliver(func() []LinkEvent { return b.links.notify(on) })
		},
	}
	if err := b.conn.Export(char, gattCharPath, gattCharIface); err != nil {
		return fmt.Errorf("export characteristic: %w", err)
	}
	if err := b.conn.Export(newGattApp(svcUUID, charUUID), gattRootPath, objectManagerIface); err != nil {
		return fmt.Errorf("export GATT application: %w", err)
	}

	call := b.conn.Object(bluezService, adapterPath).
		Call(gattManagerIface+".RegisterApplication", 0, gattRootPath, map[string]dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("register GATT application: %w", call.Err)
	}
	return nil
}

// Advertise implements Stack. The advertisement carries the service UUID and
// the local name.
func (b *BlueZ) Advertise(name string, svc Service) error {
	b.advMu.Lock()
	defer b.advMu.Unlock()

	if b.closed {
		return errStackClosed
	}
	if b.adv == nil {
		adv := b.adapter.DefaultAdvertisement()
		err := adv.Configure(bluetooth.AdvertisementOptions{
			LocalName:    name,
			ServiceUUIDs: []bluetooth.UUID{bluetooth.New16BitUUID(svc.UUID)},
		})
		if err != nil {
			return fmt.Errorf("configure advertisement: %w", err)
		}
		b.adv = adv
	} else {
		// BlueZ rejects a second registration of the same advertisement.
		_ = b.adv.Stop()
	}
	return b.adv.Start()
}

// Notify implements Stack. Setting the Value property emits
// PropertiesChanged, which BlueZ forwards as a notification to centrals that
// enabled it. Reads are unaffected.
func (b *BlueZ) Notify(_ ConnID, payload []byte) error {
	if b.props == nil {
		return errors.New("bluez: service not registered")
	}
	if derr := b.props.Set(gattCharIface, "Value", dbus.MakeVariant(payload)); derr != nil {
		return derr
	}
	return nil
}

// Close implements Stack. The shared system bus connection stays open.
func (b *BlueZ) Close() error {
	b.advMu.Lock()
	if b.closed {
		b.advMu.Unlock()
		return nil
	}
	b.closed = true
	var err error
	if b.adv != nil {
		err = b.adv.Stop()
		b.adv = nil
	}
	b.advMu.Unlock()

	if b.conn == nil {
		return err
	}
	close(b.done)
	b.conn.RemoveSignal(b.signals)
	b.wg.Wait()

	if b.props != nil {
		_ = b.conn.Object(bluezService, adapterPath).
			Call(gattManagerIface+".UnregisterApplication", 0, gattRootPath).Err
		_ = b.conn.Export(nil, gattCharPath, gattCharIface)
		_ = b.conn.Export(nil, gattRootPath, objectManagerIface)
	}
	return err
}

func (b *BlueZ) watch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case sig := <-b.signals:
			b.deliver(func() []LinkEvent { return b.links.signal(sig) })
		}
	}
}

// deliver computes events and hands them to the link handler in order.
func (b *BlueZ) deliver(next func() []LinkEvent) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	events := next()
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		return
	}
	for _, e := range events {
		handler(e)
	}
}

var _ Stack = (*BlueZ)(nil)
