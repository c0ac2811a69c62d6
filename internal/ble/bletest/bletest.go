// Package bletest provides in-memory implementations of the ble adapter
// interfaces for tests.
package bletest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chaz8081/hc05-remote/internal/ble"
)

// Characteristic records writes.
type Characteristic struct {
	mu       sync.Mutex
	writes   [][]byte
	WriteErr error
}

func (c *Characteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

// Writes returns a copy of every write so far.
func (c *Characteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Connection simulates a BLE connection exposing a fixed set of
// characteristics keyed by "service/characteristic".
type Connection struct {
	mu           sync.Mutex
	chars        map[string]*Characteristic
	disconnectCb func()
	disconnected bool
}

// NewConnection creates a connection with no characteristics.
func NewConnection() *Connection {
	return &Connection{chars: make(map[string]*Characteristic)}
}

// AddCharacteristic exposes a characteristic and returns it.
func (c *Connection) AddCharacteristic(serviceUUID, charUUID string) *Characteristic {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := &Characteristic{}
	c.chars[serviceUUID+"/"+charUUID] = ch
	return ch
}

func (c *Connection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chars[serviceUUID+"/"+charUUID]
	if !ok {
		return nil, fmt.Errorf("bletest: unknown characteristic %s/%s", serviceUUID, charUUID)
	}
	return ch, nil
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

// Disconnected reports whether Disconnect was called.
func (c *Connection) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *Connection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback.
func (c *Connection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Adapter simulates the BLE adapter. Scan reports Peripherals once and then
// blocks until its context ends. Connect hands out the connection registered
// for an address, or a fresh empty one.
type Adapter struct {
	mu          sync.Mutex
	peripherals []ble.Peripheral
	conns       map[string]*Connection
	connects    []string
	scans       int

	EnableErr  error
	ScanErr    error
	ConnectErr error

	// ConnectDelay is how long Connect takes before it returns.
	ConnectDelay time.Duration
}

// NewAdapter creates an adapter that advertises the given peripherals.
func NewAdapter(peripherals ...ble.Peripheral) *Adapter {
	return &Adapter{
		peripherals: peripherals,
		conns:       make(map[string]*Connection),
	}
}

// SetPeripherals replaces what later scans report.
func (a *Adapter) SetPeripherals(peripherals ...ble.Peripheral) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peripherals = peripherals
}

// SetConnection registers the connection returned for addr.
func (a *Adapter) SetConnection(addr string, conn *Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conns[addr] = conn
}

// Connection returns the connection handed out for addr, if any.
func (a *Adapter) Connection(addr string) *Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[addr]
}

// Connects returns the addresses passed to Connect, in order.
func (a *Adapter) Connects() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.connects...)
}

// Scans returns how many scans were started.
func (a *Adapter) Scans() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scans
}

func (a *Adapter) Enable() error { return a.EnableErr }

func (a *Adapter) Scan(ctx context.Context, _ []string, handler func(ble.Peripheral)) error {
	a.mu.Lock()
	a.scans++
	peripherals := append([]ble.Peripheral(nil), a.peripherals...)
	err := a.ScanErr
	a.mu.Unlock()
	if err != nil {
		return err
	}

	for _, p := range peripherals {
		handler(p)
	}
	<-ctx.Done()
	return nil
}

func (a *Adapter) Connect(_ context.Context, addr string) (ble.Connection, error) {
	a.mu.Lock()
	a.connects = append(a.connects, addr)
	delay := a.ConnectDelay
	a.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ConnectErr != nil {
		return nil, a.ConnectErr
	}
	conn, ok := a.conns[addr]
	if !ok {
		conn = NewConnection()
		a.conns[addr] = conn
	}
	return conn, nil
}

var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*Connection)(nil)
	_ ble.Characteristic = (*Characteristic)(nil)
)

// StateSource is a controllable ble.StateSource.
type StateSource struct {
	mu       sync.Mutex
	state    ble.AdapterState
	watchers map[int]func(ble.AdapterState)
	next     int
	StateErr error
}

// NewStateSource creates a source reporting st.
func NewStateSource(st ble.AdapterState) *StateSource {
	return &StateSource{state: st, watchers: make(map[int]func(ble.AdapterState))}
}

func (s *StateSource) State(context.Context) (ble.AdapterState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StateErr != nil {
		return ble.StateUnknown, s.StateErr
	}
	return s.state, nil
}

func (s *StateSource) Watch(cb func(ble.AdapterState)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.watchers[id] = cb
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}, nil
}

// Watchers returns the number of active watches.
func (s *StateSource) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Set changes the state and notifies watchers.
func (s *StateSource) Set(st ble.AdapterState) {
	s.mu.Lock()
	s.state = st
	cbs := make([]func(ble.AdapterState), 0, len(s.watchers))
	for _, cb := range s.watchers {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(st)
	}
}
