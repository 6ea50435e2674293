package alarm

import (
	"sync"
	"time"
)

// Registration is one recorded call to Register.
type Registration struct {
	FireAt     time.Time
	CallbackID string
}

// FakePort records registrations for test assertions.
type FakePort struct {
	mu      sync.Mutex
	pending map[string]time.Time

	// Registrations contains every successful Register call, in order.
	Registrations []Registration

	// RegisterError, if set, is returned by Register and nothing is recorded.
	RegisterError error
}

// NewFakePort creates an empty FakePort.
func NewFakePort() *FakePort {
	return &FakePort{pending: make(map[string]time.Time)}
}

// Register records the call and replaces the pending slot for callbackID.
func (f *FakePort) Register(fireAt time.Time, callbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RegisterError != nil {
		return f.RegisterError
	}
	if callbackID == "" {
		return ErrEmptyCallbackID
	}

	f.Registrations = append(f.Registrations, Registration{FireAt: fireAt, CallbackID: callbackID})
	f.pending[callbackID] = fireAt
	return nil
}

// Pending returns the armed time for callbackID, if any.
func (f *FakePort) Pending(callbackID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.pending[callbackID]
	return at, ok
}

// PendingCount returns the number of armed slots.
func (f *FakePort) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Fire consumes the pending slot for callbackID and returns its delivery,
// as the host would when the wake-up goes off at deliveredAt.
func (f *FakePort) Fire(callbackID string, deliveredAt time.Time) (Delivery, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	at, ok := f.pending[callbackID]
	if !ok {
		return Delivery{}, false
	}
	delete(f.pending, callbackID)
	return Delivery{CallbackID: callbackID, ScheduledFor: at, DeliveredAt: deliveredAt}, true
}

// Clear drops every pending slot, as a host reboot does.
func (f *FakePort) Clear() {
	f.mu.Lock()
	f.pending = make(map[string]time.Time)
	f.mu.Unlock()
}

// Reset clears recorded registrations, pending slots, and injected errors.
func (f *FakePort) Reset() {
	f.mu.Lock()
	f.pending = make(map[string]time.Time)
	f.Registrations = nil
	f.RegisterError = nil
	f.mu.Unlock()
}
