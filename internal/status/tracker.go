// internal/status/tracker.go
package status

import (
	"sync"

	"github.com/tamzrod/modbus-labctl/internal/bus"
)

// Tracker owns the health state of one device.
// It is fed poll outcomes and a 1 Hz tick; it never does IO.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker(device string) *Tracker {
	return &Tracker{snap: Snapshot{Device: device, Health: HealthUnknown}}
}

// Observe folds one poll outcome into the state.
// Returns true when the snapshot changed.
func (t *Tracker) Observe(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := false

	if err == nil {
		// Recovery / OK
		if t.snap.Health != HealthOK {
			t.snap.Health = HealthOK
			changed = true
		}
		if t.snap.LastErrorCode != 0 {
			t.snap.LastErrorCode = 0
			changed = true
		}
		if t.snap.SecondsInError != 0 {
			t.snap.SecondsInError = 0
			changed = true
		}
		return changed
	}

	if t.snap.Health != HealthError {
		t.snap.Health = HealthError
		changed = true
	}
	// seconds_in_error advances on Tick only.
	if code := bus.ErrorCode(err); t.snap.LastErrorCode != code {
		t.snap.LastErrorCode = code
		changed = true
	}
	return changed
}

// Tick advances the error timer by one second while the device is not OK.
// Returns true when the snapshot changed.
func (t *Tracker) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthOK || t.snap.Health == HealthDisabled {
		return false
	}
	if t.snap.SecondsInError >= MaxSecondsInError {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
