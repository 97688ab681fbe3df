// Package systemd integrates with the service manager: readiness and
// watchdog notifications, and unit control over D-Bus.
package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Manager handles systemd service lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager connects to the system bus, or to the user bus when user is set.
func NewManager(ctx context.Context, user bool) (*Manager, error) {
	connect := dbus.NewSystemConnectionContext
	if user {
		connect = dbus.NewUserConnectionContext
	}
	conn, err := connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// ServiceStatus returns the ActiveState of a unit (active, inactive, failed, ...).
func (m *Manager) ServiceStatus(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	var state string
	if err := prop.Value.Store(&state); err != nil {
		return prop.Value.String(), nil
	}
	return state, nil
}

// RestartService queues a restart of unit in replace mode. It does not wait
// for the job: restarting our own unit would never see the result.
func (m *Manager) RestartService(ctx context.Context, unit string) error {
	_, err := m.conn.RestartUnitContext(ctx, unit, "replace", nil)
	return err
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
