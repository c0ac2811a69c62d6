package remote

import "fmt"

// Phase is the step of the connect workflow a session is in.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseScanning   Phase = "scanning"
	PhaseConnecting Phase = "connecting"
	PhaseConnected  Phase = "connected"
	PhaseNotFound   Phase = "not_found"
	PhaseFailed     Phase = "failed"
)

// State is a snapshot of a session. DeviceID is only meaningful when
// Connected is true. Phase reflects the latest discovery attempt and may
// move back to scanning while Connected stays true.
type State struct {
	Connected bool
	DeviceID  string
	Phase     Phase
}

func (s State) String() string {
	if s.Connected {
		return fmt.Sprintf("%s (device %s)", s.Phase, s.DeviceID)
	}
	return string(s.Phase)
}

// Settled reports whether the latest discovery attempt has finished.
func (s State) Settled() bool {
	switch s.Phase {
	case PhaseConnected, PhaseNotFound, PhaseFailed:
		return true
	}
	return false
}
