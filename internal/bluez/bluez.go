// Package bluez reports the power state of a BlueZ adapter over the system
// D-Bus, including PropertiesChanged notifications.
package bluez

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/chaz8081/hc05-remote/internal/ble"
)

const (
	busName      = "org.bluez"
	adapterIface = "org.bluez.Adapter1"
	propsIface   = "org.freedesktop.DBus.Properties"
	propsSignal  = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

// adapterPath converts an adapter name like "hci0" to "/org/bluez/hci0".
func adapterPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + name)
}

// StateSource implements ble.StateSource for one BlueZ adapter.
type StateSource struct {
	conn *dbus.Conn
	path dbus.ObjectPath

	mu     sync.Mutex
	closed bool
}

var _ ble.StateSource = (*StateSource)(nil)

// New opens a private system bus connection and checks that BlueZ is present.
func New(adapter string) (*StateSource, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bluez: list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("bluez: %s not found on system bus, is bluetooth.service running?", busName)
	}

	return &StateSource{conn: conn, path: adapterPath(adapter)}, nil
}

// State reads the adapter's Powered property.
func (s *StateSource) State(ctx context.Context) (ble.AdapterState, error) {
	obj := s.conn.Object(busName, s.path)
	var v dbus.Variant
	if err := obj.CallWithContext(ctx, propsIface+".Get", 0, adapterIface, "Powered").Store(&v); err != nil {
		return ble.StateUnknown, fmt.Errorf("bluez: get Powered: %w", err)
	}
	st, ok := stateFromVariant(v)
	if !ok {
		return ble.StateUnknown, fmt.Errorf("bluez: Powered is %s, not bool", v.Signature())
	}
	return st, nil
}

// Watch subscribes to PropertiesChanged for the adapter and reports Powered
// transitions until stop is called.
func (s *StateSource) Watch(callback func(ble.AdapterState)) (func(), error) {
	rule := fmt.Sprintf("type='signal',interface='%s',member='PropertiesChanged',path='%s'", propsIface, s.path)
	if err := s.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, fmt.Errorf("bluez: add match: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	s.conn.Signal(ch)

	go func() {
		for sig := range ch {
			if st, ok := poweredChange(sig, s.path); ok {
				callback(st)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := s.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule).Err; err != nil {
				slog.Debug("[BLUEZ] remove match failed", "error", err)
			}
			s.conn.RemoveSignal(ch)
			close(ch)
		})
	}
	return stop, nil
}

// Close releases the bus connection.
func (s *StateSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// poweredChange extracts a Powered transition from a PropertiesChanged
// signal emitted by the adapter at path.
// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
func poweredChange(sig *dbus.Signal, path dbus.ObjectPath) (ble.AdapterState, bool) {
	if sig == nil || sig.Name != propsSignal || sig.Path != path {
		return "", false
	}
	if len(sig.Body) < 2 {
		return "", false
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != adapterIface {
		return "", false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return "", false
	}
	v, ok := changed["Powered"]
	if !ok {
		return "", false
	}
	return stateFromVariant(v)
}

func stateFromVariant(v dbus.Variant) (ble.AdapterState, bool) {
	powered, ok := v.Value().(bool)
	if !ok {
		return "", false
	}
	if powered {
		return ble.StateOn, true
	}
	return ble.StateOff, true
}
