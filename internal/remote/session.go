// Package remote drives the connect-and-send workflow for an HC-05 style
// serial peripheral: timed discovery, exact name match, connect, and text
// writes. Failures are logged, never returned; callers read State.
package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/hc05-remote/internal/ble"
	"github.com/chaz8081/hc05-remote/internal/config"
)

// Provider is the BLE capability the session delegates to. *ble.Manager
// implements it.
type Provider interface {
	Scan(serviceUUIDs []string, seconds int, allowDuplicates bool) error
	DiscoveredPeripherals() ([]ble.Peripheral, error)
	Connect(ctx context.Context, id string) error
	Write(ctx context.Context, id, serviceUUID, charUUID string, data []byte) error
}

var _ Provider = (*ble.Manager)(nil)

// Options configures a Session.
type Options struct {
	DeviceName         string
	ServiceUUID        string
	CharacteristicUUID string
	ScanSeconds        int
	Delay              time.Duration // fixed wait between scan start and reading results
	AllowDuplicates    bool
}

// DefaultOptions returns the HC-05 defaults.
func DefaultOptions() Options {
	return Options{
		DeviceName:         config.DefaultDeviceName,
		ServiceUUID:        config.DefaultServiceUUID,
		CharacteristicUUID: config.DefaultCharacteristicUUID,
		ScanSeconds:        5,
		Delay:              5 * time.Second,
		AllowDuplicates:    true,
	}
}

// OptionsFromConfig maps the device and discovery sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DeviceName:         cfg.Device.Name,
		ServiceUUID:        cfg.Device.ServiceUUID,
		CharacteristicUUID: cfg.Device.CharacteristicUUID,
		ScanSeconds:        cfg.Discovery.ScanSeconds,
		Delay:              cfg.Discovery.Delay,
		AllowDuplicates:    cfg.Discovery.AllowDuplicates,
	}
}

// Session holds the connection state for one target device.
type Session struct {
	provider Provider
	opts     Options

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int

	inflight sync.WaitGroup
}

// NewSession creates a Session in the idle phase.
func NewSession(provider Provider, opts Options) *Session {
	return &Session{
		provider: provider,
		opts:     opts,
		state:    State{Phase: PhaseIdle},
		subs:     make(map[int]func(State)),
	}
}

// State returns a snapshot of the connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers callback for every state change. The returned function
// removes it.
func (s *Session) Subscribe(callback func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = callback
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.state
	cbs := make([]func(State), 0, len(s.subs))
	for _, cb := range s.subs {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(st)
	}
}

func (s *Session) setPhase(p Phase) {
	s.update(func(st *State) { st.Phase = p })
}

// Connect scans, waits the fixed delay, then connects to the first discovered
// peripheral whose name equals the target name. On success Connected and
// DeviceID are set; they are never cleared afterwards.
func (s *Session) Connect(ctx context.Context) {
	s.setPhase(PhaseScanning)
	if err := s.provider.Scan(nil, s.opts.ScanSeconds, s.opts.AllowDuplicates); err != nil {
		slog.Error("[REMOTE] scan failed", "error", err)
		s.setPhase(PhaseFailed)
		return
	}
	slog.Info("[REMOTE] scanning", "target", s.opts.DeviceName, "wait", s.opts.Delay)

	timer := time.NewTimer(s.opts.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		slog.Warn("[REMOTE] discovery cancelled", "error", ctx.Err())
		s.setPhase(PhaseFailed)
		return
	}

	peripherals, err := s.provider.DiscoveredPeripherals()
	if err != nil {
		slog.Error("[REMOTE] discovering peripherals failed", "error", err)
		s.setPhase(PhaseFailed)
		return
	}
	slog.Debug("[REMOTE] peripherals discovered", "count", len(peripherals))
	for _, p := range peripherals {
		slog.Debug("[REMOTE] peripheral", "id", p.ID, "name", p.Name, "rssi", p.RSSI,
			"local_name", p.Advertising.LocalName, "manufacturer_data", len(p.Advertising.ManufacturerData))
	}

	target, ok := findByName(peripherals, s.opts.DeviceName)
	if !ok {
		slog.Warn("[REMOTE] device not found", "name", s.opts.DeviceName)
		s.setPhase(PhaseNotFound)
		return
	}

	s.setPhase(PhaseConnecting)
	if err := s.provider.Connect(ctx, target.ID); err != nil {
		slog.Error("[REMOTE] connect failed", "id", target.ID, "error", err)
		s.setPhase(PhaseFailed)
		return
	}

	s.update(func(st *State) {
		st.Connected = true
		st.DeviceID = target.ID
		st.Phase = PhaseConnected
	})
	slog.Info("[REMOTE] connected", "name", target.Name, "id", target.ID)
}

// ConnectAsync runs Connect in the background. Wait blocks until every
// background connect has finished.
func (s *Session) ConnectAsync(ctx context.Context) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.Connect(ctx)
	}()
}

// Wait blocks until all ConnectAsync calls have returned.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// Send re-triggers discovery in the background and then, if an earlier
// discovery already connected, writes message as UTF-8 to the configured
// service and characteristic. The connected check does not wait for the
// discovery it just started. Send returns the bytes it tried to write, or
// nil when it did not attempt a write.
func (s *Session) Send(ctx context.Context, message string) []byte {
	slog.Debug("[REMOTE] send requested", "message", message)
	s.ConnectAsync(ctx)

	st := s.State()
	if !st.Connected {
		slog.Error("[REMOTE] not connected", "name", s.opts.DeviceName)
		return nil
	}

	data := []byte(message)
	if err := s.provider.Write(ctx, st.DeviceID, s.opts.ServiceUUID, s.opts.CharacteristicUUID, data); err != nil {
		slog.Error("[REMOTE] message not sent", "id", st.DeviceID, "error", err)
		return data
	}
	slog.Info("[REMOTE] message sent", "id", st.DeviceID, "bytes", len(data))
	return data
}

// findByName returns the first peripheral whose name is exactly name.
func findByName(peripherals []ble.Peripheral, name string) (ble.Peripheral, bool) {
	for _, p := range peripherals {
		if p.Name == name {
			return p, true
		}
	}
	return ble.Peripheral{}, false
}
