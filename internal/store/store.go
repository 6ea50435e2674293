// Package store persists the reset record: the last reset date, the last
// signal the reset clears, and a short history of fired resets.
package store

import (
	"errors"
	"time"
)

// Preference keys. Signal producers read and write the same names.
const (
	KeyLastSignalType = "last_signal_type"
	KeyLastResetDate  = "last_reset_date"
	KeyBootID         = "boot_id"
)

// ErrNotFound indicates a key or record that has never been written.
var ErrNotFound = errors.New("store: not found")

// ResetRecord is the persisted reset state.
type ResetRecord struct {
	LastResetDate  string
	LastSignalType string
	UpdatedAt      time.Time
}

// Reset is one fired reset in the history table.
type Reset struct {
	ID           string
	Date         string
	FiredAt      time.Time
	ScheduledFor time.Time
}
