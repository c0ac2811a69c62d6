package bluez

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/chaz8081/hc05-remote/internal/ble"
)

func TestAdapterPath(t *testing.T) {
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci1"), adapterPath("hci1"))
}

func propsChanged(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: propsSignal,
		Body: []interface{}{iface, changed, []string{}},
	}
}

func TestPoweredChange(t *testing.T) {
	path := adapterPath("hci0")

	tests := []struct {
		name   string
		sig    *dbus.Signal
		want   ble.AdapterState
		wantOK bool
	}{
		{
			name:   "powered on",
			sig:    propsChanged(path, adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}),
			want:   ble.StateOn,
			wantOK: true,
		},
		{
			name:   "powered off",
			sig:    propsChanged(path, adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(false)}),
			want:   ble.StateOff,
			wantOK: true,
		},
		{
			name: "other property",
			sig:  propsChanged(path, adapterIface, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(true)}),
		},
		{
			name: "device interface",
			sig:  propsChanged(path, "org.bluez.Device1", map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}),
		},
		{
			name: "other adapter",
			sig:  propsChanged(adapterPath("hci1"), adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}),
		},
		{
			name: "non-bool value",
			sig:  propsChanged(path, adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant("yes")}),
		},
		{
			name: "short body",
			sig:  &dbus.Signal{Path: path, Name: propsSignal, Body: []interface{}{adapterIface}},
		},
		{
			name: "nil signal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := poweredChange(tt.sig, path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
