// Package ble provides the Bluetooth Low Energy provider used to find, connect
// to and write to a serial bridge such as an HC-05 module. The Manager mirrors
// the provider surface a mobile BLE library offers: start, adapter state,
// timed scan, discovered peripherals, connect and write.
package ble

import "context"

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic.
	Write(data []byte) error
}

// ManufacturerData is one manufacturer specific advertising element.
type ManufacturerData struct {
	CompanyID uint16
	Data      []byte
}

// Advertising is the payload a peripheral broadcasts.
type Advertising struct {
	LocalName        string
	ManufacturerData []ManufacturerData
}

// Peripheral represents a discovered BLE peripheral.
type Peripheral struct {
	ID          string // MAC address, or a CoreBluetooth UUID on macOS
	Name        string
	RSSI        int
	Advertising Advertising
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports every advertisement to handler until ctx is done. An empty
	// serviceUUIDs reports all peripherals.
	Scan(ctx context.Context, serviceUUIDs []string, handler func(Peripheral)) error
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, addr string) (Connection, error)
}

// AdapterState is the power state of the local Bluetooth adapter.
type AdapterState string

const (
	StateUnknown AdapterState = "unknown"
	StateOn      AdapterState = "on"
	StateOff     AdapterState = "off"
)

// StateSource reports adapter power state and its changes.
type StateSource interface {
	State(ctx context.Context) (AdapterState, error)
	// Watch calls callback on every state change until stop is called.
	Watch(callback func(AdapterState)) (stop func(), err error)
}

// StaticState is a StateSource for platforms without power-state events.
// It always reports the same state.
type StaticState AdapterState

func (s StaticState) State(context.Context) (AdapterState, error) {
	return AdapterState(s), nil
}

func (s StaticState) Watch(func(AdapterState)) (func(), error) {
	return func() {}, nil
}
