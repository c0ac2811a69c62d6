package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/hc05-remote/internal/ble"
	"github.com/chaz8081/hc05-remote/internal/ble/bletest"
	"github.com/chaz8081/hc05-remote/internal/config"
)

func newManager(t *testing.T, adapter *bletest.Adapter) *ble.Manager {
	t.Helper()
	opts := ble.DefaultManagerOptions()
	opts.InterChunkDelay = 0
	m := ble.NewManager(adapter, nil, opts)
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSessionOverManager(t *testing.T) {
	captureLogs(t)
	opts := testOptions()

	adapter := bletest.NewAdapter(
		ble.Peripheral{ID: "11:22", Name: "Other"},
		ble.Peripheral{ID: "AA:BB", Name: "HC-05"},
	)
	conn := bletest.NewConnection()
	char := conn.AddCharacteristic(opts.ServiceUUID, opts.CharacteristicUUID)
	adapter.SetConnection("AA:BB", conn)

	s := NewSession(newManager(t, adapter), opts)
	s.Connect(context.Background())

	st := s.State()
	require.True(t, st.Connected)
	assert.Equal(t, "AA:BB", st.DeviceID)

	// Longer than one 20-byte BLE write.
	msg := "Hello Arduino, rotate to 180 degrees"
	assert.Equal(t, []byte(msg), s.Send(context.Background(), msg))
	s.Wait()

	var got []byte
	for _, w := range char.Writes() {
		assert.LessOrEqual(t, len(w), 20)
		got = append(got, w...)
	}
	assert.Equal(t, msg, string(got))
}

func TestSessionOverManagerLiteralUUIDs(t *testing.T) {
	logs := captureLogs(t)
	opts := testOptions()
	opts.CharacteristicUUID = config.DefaultCharacteristicUUID

	adapter := bletest.NewAdapter(ble.Peripheral{ID: "AA:BB", Name: "HC-05"})
	s := NewSession(newManager(t, adapter), opts)
	s.Connect(context.Background())
	require.True(t, s.State().Connected)

	s.Send(context.Background(), "Hello Arduino")
	s.Wait()

	assert.Contains(t, logs.String(), "message not sent")
	assert.Contains(t, logs.String(), "characteristic UUID is empty")
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Name = "HMSoft"
	cfg.Device.CharacteristicUUID = "FFE1"
	cfg.Discovery.AllowDuplicates = false

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, "HMSoft", opts.DeviceName)
	assert.Equal(t, config.DefaultServiceUUID, opts.ServiceUUID)
	assert.Equal(t, "FFE1", opts.CharacteristicUUID)
	assert.Equal(t, cfg.Discovery.ScanSeconds, opts.ScanSeconds)
	assert.Equal(t, cfg.Discovery.Delay, opts.Delay)
	assert.False(t, opts.AllowDuplicates)
}

func TestDefaultOptionsMatchConfigDefaults(t *testing.T) {
	assert.Equal(t, OptionsFromConfig(config.Default()), DefaultOptions())
}
