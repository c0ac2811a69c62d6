package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/hc05-remote/internal/ble/protocol"
)

var (
	ErrNotStarted          = errors.New("ble: manager not started")
	ErrScanInProgress      = errors.New("ble: scan already in progress")
	ErrNotConnected        = errors.New("ble: peripheral not connected")
	ErrEmptyCharacteristic = errors.New("ble: characteristic UUID is empty")
)

// ManagerOptions configures the Manager behavior.
type ManagerOptions struct {
	MaxByteSize     int           // max bytes per BLE write
	InterChunkDelay time.Duration // delay between BLE write chunks
}

// DefaultManagerOptions returns sensible defaults.
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		MaxByteSize:     protocol.DefaultMaxByteSize,
		InterChunkDelay: 20 * time.Millisecond,
	}
}

// Manager is the BLE provider. Safe for concurrent use.
type Manager struct {
	adapter Adapter
	states  StateSource
	opts    ManagerOptions

	mu          sync.Mutex
	started     bool
	stopWatch   func()
	scanning    bool
	cancelScan  context.CancelFunc
	peripherals map[string]*Peripheral
	order       []string
	conns       map[string]Connection
	connecting  map[string]*pendingConnect
	listeners   map[int]func(AdapterState)
	nextID      int
}

// NewManager creates a Manager over the given adapter. A nil states source
// reports the adapter as on.
func NewManager(adapter Adapter, states StateSource, opts ManagerOptions) *Manager {
	if states == nil {
		states = StaticState(StateOn)
	}
	if opts.MaxByteSize <= 0 {
		opts.MaxByteSize = protocol.DefaultMaxByteSize
	}
	return &Manager{
		adapter:     adapter,
		states:      states,
		opts:        opts,
		peripherals: make(map[string]*Peripheral),
		conns:       make(map[string]Connection),
		connecting:  make(map[string]*pendingConnect),
		listeners:   make(map[int]func(AdapterState)),
	}
}

// Start enables the adapter and begins watching its power state. Calling
// Start again is a no-op.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if err := m.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	stop, err := m.states.Watch(m.dispatchState)
	if err != nil {
		// State events are informational; the adapter is usable without them.
		slog.Warn("[BLE] adapter state events unavailable", "error", err)
		stop = func() {}
	}
	m.stopWatch = stop
	m.started = true
	slog.Debug("[BLE] manager started")
	return nil
}

// CheckState returns the current adapter power state.
func (m *Manager) CheckState(ctx context.Context) (AdapterState, error) {
	st, err := m.states.State(ctx)
	if err != nil {
		return StateUnknown, fmt.Errorf("ble: check state: %w", err)
	}
	return st, nil
}

// OnStateChange registers callback for adapter power changes. The returned
// function removes it.
func (m *Manager) OnStateChange(callback func(AdapterState)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = callback
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) dispatchState(st AdapterState) {
	m.mu.Lock()
	cbs := make([]func(AdapterState), 0, len(m.listeners))
	for _, cb := range m.listeners {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()

	slog.Debug("[BLE] adapter state changed", "state", st)
	for _, cb := range cbs {
		cb(st)
	}
}

// Scan starts a scan that runs in the background for the given number of
// seconds. Results accumulate and are read with DiscoveredPeripherals. With
// allowDuplicates, repeated advertisements refresh a known peripheral.
func (m *Manager) Scan(serviceUUIDs []string, seconds int, allowDuplicates bool) error {
	if seconds <= 0 {
		return fmt.Errorf("ble: scan duration must be > 0, got %d", seconds)
	}

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.scanning {
		m.mu.Unlock()
		return ErrScanInProgress
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(seconds)*time.Second)
	m.scanning = true
	m.cancelScan = cancel
	m.mu.Unlock()

	slog.Debug("[BLE] scan started", "seconds", seconds, "services", serviceUUIDs, "allow_duplicates", allowDuplicates)

	go func() {
		defer cancel()
		err := m.adapter.Scan(ctx, serviceUUIDs, func(p Peripheral) {
			m.record(p, allowDuplicates)
		})

		m.mu.Lock()
		m.scanning = false
		m.cancelScan = nil
		m.mu.Unlock()

		if err != nil && ctx.Err() == nil {
			slog.Error("[BLE] scan failed", "error", err)
			return
		}
		slog.Debug("[BLE] scan finished")
	}()
	return nil
}

// StopScan ends a running scan early.
func (m *Manager) StopScan() {
	m.mu.Lock()
	cancel := m.cancelScan
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Scanning reports whether a scan is running.
func (m *Manager) Scanning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanning
}

func (m *Manager) record(p Peripheral, allowDuplicates bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known, ok := m.peripherals[p.ID]
	if !ok {
		cp := p
		m.peripherals[p.ID] = &cp
		m.order = append(m.order, p.ID)
		return
	}
	if !allowDuplicates {
		return
	}
	known.RSSI = p.RSSI
	if p.Name != "" {
		known.Name = p.Name
	}
	known.Advertising = p.Advertising
}

// DiscoveredPeripherals returns every peripheral seen so far, in discovery
// order.
func (m *Manager) DiscoveredPeripherals() ([]Peripheral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil, ErrNotStarted
	}

	out := make([]Peripheral, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.peripherals[id])
	}
	return out, nil
}

// pendingConnect is an adapter connect in flight. err is set before done is
// closed.
type pendingConnect struct {
	done chan struct{}
	err  error
}

// Connect connects to the peripheral with the given ID. Connecting to an
// already connected peripheral is a no-op, and a caller that overlaps a
// connect in flight for the same ID waits for its result.
func (m *Manager) Connect(ctx context.Context, id string) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if _, ok := m.conns[id]; ok {
		m.mu.Unlock()
		return nil
	}
	if p, ok := m.connecting[id]; ok {
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return fmt.Errorf("ble: connect to %s: %w", id, ctx.Err())
		}
	}
	p := &pendingConnect{done: make(chan struct{})}
	m.connecting[id] = p
	m.mu.Unlock()

	p.err = m.connect(ctx, id)
	close(p.done)
	return p.err
}

func (m *Manager) connect(ctx context.Context, id string) error {
	conn, err := m.adapter.Connect(ctx, id)

	m.mu.Lock()
	delete(m.connecting, id)
	closed := !m.started
	if err == nil && !closed {
		m.conns[id] = conn
	}
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("ble: connect to %s: %w", id, err)
	}
	if closed {
		// Close ran while the adapter was connecting.
		_ = conn.Disconnect()
		return ErrNotStarted
	}

	conn.OnDisconnect(func() {
		slog.Warn("[BLE] peripheral disconnected", "id", id)
		m.mu.Lock()
		if m.conns[id] == conn {
			delete(m.conns, id)
		}
		m.mu.Unlock()
	})

	slog.Info("[BLE] connected", "id", id)
	return nil
}

// IsConnected reports whether the peripheral has a live connection.
func (m *Manager) IsConnected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[id]
	return ok
}

// Write sends data to a characteristic of a connected peripheral, split into
// writes of at most MaxByteSize bytes.
func (m *Manager) Write(ctx context.Context, id, serviceUUID, charUUID string, data []byte) error {
	m.mu.Lock()
	conn, ok := m.conns[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, id)
	}
	if charUUID == "" {
		return ErrEmptyCharacteristic
	}

	char, err := conn.DiscoverCharacteristic(serviceUUID, charUUID)
	if err != nil {
		return fmt.Errorf("ble: discover characteristic %s/%s: %w", serviceUUID, charUUID, err)
	}

	chunks := protocol.ChunkBytes(data, m.opts.MaxByteSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ble: write: %w", err)
		}
		if err := char.Write(chunk); err != nil {
			return fmt.Errorf("ble: write chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 && m.opts.InterChunkDelay > 0 {
			time.Sleep(m.opts.InterChunkDelay)
		}
	}
	return nil
}

// Close stops any scan, disconnects every peripheral and drops state
// subscriptions.
func (m *Manager) Close() error {
	m.mu.Lock()
	cancel := m.cancelScan
	stop := m.stopWatch
	conns := m.conns
	m.conns = make(map[string]Connection)
	m.listeners = make(map[int]func(AdapterState))
	m.stopWatch = nil
	m.started = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stop != nil {
		stop()
	}

	var errs []error
	for id, conn := range conns {
		if err := conn.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("ble: disconnect %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
