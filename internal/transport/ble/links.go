package ble

import (
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// BlueZ D-Bus names.
const (
	bluezService       = "org.bluez"
	bluezRoot          = "/org/bluez/"
	deviceIface        = "org.bluez.Device1"
	gattServiceIface   = "org.bluez.GattService1"
	gattCharIface      = "org.bluez.GattCharacteristic1"
	gattManagerIface   = "org.bluez.GattManager1"
	propertiesIface    = "org.freedesktop.DBus.Properties"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"
	propertiesChanged  = propertiesIface + ".PropertiesChanged"
)

// Object paths of the exported GATT application.
const (
	gattRootPath    = dbus.ObjectPath("/org/edgelatency/gatt")
	gattServicePath = gattRootPath + "/service0"
	gattCharPath    = gattServicePath + "/char0"

	adapterPath = dbus.ObjectPath("/org/bluez/hci0")
)

// linkTracker turns BlueZ device and notification changes into LinkEvents.
//
// BlueZ reports connections as Device1.Connected property changes and
// forwards CCCD writes on our characteristic as StartNotify/StopNotify
// calls, without saying which device made them. Subscriptions therefore
// apply to the newest connection.
type linkTracker struct {
	mu        sync.Mutex
	conns     map[dbus.ObjectPath]ConnID
	nextID    ConnID
	current   ConnID
	notifying bool
}

func newLinkTracker() *linkTracker {
	return &linkTracker{conns: make(map[dbus.ObjectPath]ConnID)}
}

// signal translates a PropertiesChanged signal. Anything else yields nothing.
func (l *linkTracker) signal(sig *dbus.Signal) []LinkEvent {
	if sig == nil || sig.Name != propertiesChanged || len(sig.Body) < 2 {
		return nil
	}
	if !strings.HasPrefix(string(sig.Path), bluezRoot) {
		return nil
	}
	iface, _ := sig.Body[0].(string)
	changed, _ := sig.Body[1].(map[string]dbus.Variant)
	if iface != deviceIface || changed == nil {
		return nil
	}
	v, ok := changed["Connected"]
	if !ok {
		return nil
	}
	connected, ok := v.Value().(bool)
	if !ok {
		return nil
	}
	return l.device(sig.Path, connected)
}

func (l *linkTracker) device(path dbus.ObjectPath, connected bool) []LinkEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, known := l.conns[path]
	if connected {
		if known {
			return nil
		}
		l.nextID++
		if l.nextID == 0 {
			l.nextID++
		}
		id = l.nextID
		l.conns[path] = id
		l.current = id
		events := []LinkEvent{{Kind: EventConnect, Conn: id}}
		// StartNotify may arrive before the Connected change is seen.
		if l.notifying {
			events = append(events, LinkEvent{Kind: EventSubscribe, Conn: id})
		}
		return events
	}

	if !known {
		return nil
	}
	delete(l.conns, path)
	if id == l.current {
		l.current = 0
	}
	if len(l.conns) == 0 {
		l.notifying = false
	}
	return []LinkEvent{{Kind: EventDisconnect, Conn: id}}
}

// notify records a StartNotify (on) or StopNotify call.
func (l *linkTracker) notify(on bool) []LinkEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.notifying == on {
		return nil
	}
	l.notifying = on
	if l.current == 0 {
		return nil
	}
	kind := EventUnsubscribe
	if on {
		kind = EventSubscribe
	}
	return []LinkEvent{{Kind: kind, Conn: l.current}}
}

// gattCharacteristic is the exported org.bluez.GattCharacteristic1 method
// set. Reads are answered live from read; the Value property only carries
// notification payloads.
type gattCharacteristic struct {
	read   func() []byte
	notify func(on bool)
}

// ReadValue is called by BlueZ for every central read.
func (c *gattCharacteristic) ReadValue(_ map[string]dbus.Variant) ([]byte, *dbus.Error) {
	if c.read == nil {
		return []byte{}, nil
	}
	return c.read(), nil
}

// WriteValue rejects writes; the characteristic is read and notify only.
func (c *gattCharacteristic) WriteValue(_ []byte, _ map[string]dbus.Variant) *dbus.Error {
	return dbus.NewError("org.bluez.Error.NotPermitted", []interface{}{"characteristic is read-only"})
}

// StartNotify is called when the first central enables notifications.
func (c *gattCharacteristic) StartNotify() *dbus.Error {
	if c.notify != nil {
		c.notify(true)
	}
	return nil
}

// StopNotify is called when the last central disables notifications.
func (c *gattCharacteristic) StopNotify() *dbus.Error {
	if c.notify != nil {
		c.notify(false)
	}
	return nil
}

// gattApp is the object manager BlueZ walks on RegisterApplication.
type gattApp struct {
	objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
}

// GetManagedObjects implements org.freedesktop.DBus.ObjectManager.
func (a *gattApp) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	return a.objects, nil
}

// charFlags are the GATT properties of the state characteristic.
var charFlags = []string{"read", "notify"}

// newGattApp describes the single service and characteristic for BlueZ.
func newGattApp(serviceUUID, charUUID string) *gattApp {
	return &gattApp{objects: map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		gattServicePath: {
			gattServiceIface: {
				"UUID":    dbus.MakeVariant(serviceUUID),
				"Primary": dbus.MakeVariant(true),
			},
		},
		gattCharPath: {
			gattCharIface: {
				"UUID":    dbus.MakeVariant(charUUID),
				"Service": dbus.MakeVariant(gattServicePath),
				"Flags":   dbus.MakeVariant(charFlags),
			},
		},
	}}
}
