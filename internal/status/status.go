// Package status provides a thread-safe status tracker for the signal-reset daemon.
// It is read by the HTTP handlers and used to build MQTT system payloads.
package status

import (
	"sync"
	"time"
)

// Config contains daemon configuration for display.
type Config struct {
	FireTime string
	Timezone string
	Broker   string
	HTTPAddr string
	DB       string
	ArmPin   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	StartTime time.Time
	Now       time.Time

	// Most recent scheduling attempt, from any entry point.
	LastTrigger   string
	LastOutcome   string
	LastError     string
	LastAttemptAt time.Time

	// NextTarget is the armed fire time; zero when nothing is known to be armed.
	NextTarget time.Time

	// LastSignal is the most recent trading signal held; empty once cleared.
	LastSignal string

	LastResetID   string
	LastResetDate string
	LastResetAt   time.Time
	Resets        int

	PermissionGranted bool
	MQTTConnected     bool
	Config            Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Armed reports whether a fire time is believed to be registered.
func (s Snapshot) Armed() bool {
	return !s.NextTarget.IsZero()
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// RecordAttempt stores the result of a scheduling attempt. A successful
// attempt replaces NextTarget. A failed one leaves it untouched: the
// previous registration is still armed, except after a fire, when the
// caller passes clearTarget because the armed time has been consumed.
func (t *Tracker) RecordAttempt(trigger, outcome string, at, target time.Time, err error, clearTarget bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.LastTrigger = trigger
	t.snap.LastOutcome = outcome
	t.snap.LastAttemptAt = at
	t.snap.LastError = ""
	if err != nil {
		t.snap.LastError = err.Error()
		if clearTarget {
			t.snap.NextTarget = time.Time{}
		}
		return
	}
	t.snap.NextTarget = target
}

// RecordReset stores a completed reset. The last signal is cleared with it.
func (t *Tracker) RecordReset(id, date string, at time.Time) {
	t.mu.Lock()
	t.snap.LastSignal = ""
	t.snap.LastResetID = id
	t.snap.LastResetDate = date
	t.snap.LastResetAt = at
	t.snap.Resets++
	t.mu.Unlock()
}

// SetLastResetDate seeds the last reset date from the store at startup.
func (t *Tracker) SetLastResetDate(date string) {
	t.mu.Lock()
	t.snap.LastResetDate = date
	t.mu.Unlock()
}

// SetLastSignal sets the currently held signal.
func (t *Tracker) SetLastSignal(signal string) {
	t.mu.Lock()
	t.snap.LastSignal = signal
	t.mu.Unlock()
}

// SetPermission sets whether precise scheduling is currently granted.
func (t *Tracker) SetPermission(granted bool) {
	t.mu.Lock()
	t.snap.PermissionGranted = granted
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
