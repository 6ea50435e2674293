package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Fake is an in-memory store with injectable failures.
type Fake struct {
	mu     sync.Mutex
	prefs  map[string]string
	resets []Reset

	// Updated is the time of the last write.
	Updated time.Time

	// Per-operation errors. When set the operation fails without side effects.
	ClearError     error
	SetDateError   error
	AppendError    error
	BootIDError    error
	SetBootIDError error
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{prefs: make(map[string]string)}
}

// ClearLastSignal removes the last signal type.
func (f *Fake) ClearLastSignal(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClearError != nil {
		return f.ClearError
	}
	delete(f.prefs, KeyLastSignalType)
	f.Updated = time.Now()
	return nil
}

// SetLastSignal records the last signal type.
func (f *Fake) SetLastSignal(ctx context.Context, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[KeyLastSignalType] = signal
	f.Updated = time.Now()
	return nil
}

// SetLastResetDate records the last reset date.
func (f *Fake) SetLastResetDate(ctx context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetDateError != nil {
		return f.SetDateError
	}
	f.prefs[KeyLastResetDate] = date
	f.Updated = time.Now()
	return nil
}

// ApplyReset clears the last signal and sets the last reset date. Either
// injected write error fails the whole reset without side effects.
func (f *Fake) ApplyReset(ctx context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := errors.Join(f.ClearError, f.SetDateError); err != nil {
		return err
	}
	delete(f.prefs, KeyLastSignalType)
	f.prefs[KeyLastResetDate] = date
	f.Updated = time.Now()
	return nil
}

// Record returns the current record.
func (f *Fake) Record(ctx context.Context) (ResetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sig, okSig := f.prefs[KeyLastSignalType]
	date, okDate := f.prefs[KeyLastResetDate]
	if !okSig && !okDate {
		return ResetRecord{}, ErrNotFound
	}
	return ResetRecord{LastResetDate: date, LastSignalType: sig, UpdatedAt: f.Updated}, nil
}

// HasLastSignal reports whether a last signal type is stored.
func (f *Fake) HasLastSignal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.prefs[KeyLastSignalType]
	return ok
}

// BootID returns the stored boot id.
func (f *Fake) BootID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BootIDError != nil {
		return "", f.BootIDError
	}
	id, ok := f.prefs[KeyBootID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

// SetBootID stores the boot id.
func (f *Fake) SetBootID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetBootIDError != nil {
		return f.SetBootIDError
	}
	f.prefs[KeyBootID] = id
	return nil
}

// AppendReset records a reset.
func (f *Fake) AppendReset(ctx context.Context, r Reset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AppendError != nil {
		return f.AppendError
	}
	f.resets = append(f.resets, r)
	return nil
}

// RecentResets returns up to limit resets, newest first.
func (f *Fake) RecentResets(ctx context.Context, limit int) ([]Reset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]Reset(nil), f.resets...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
