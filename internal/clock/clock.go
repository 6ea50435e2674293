// Package clock supplies wall-clock time and the calendar arithmetic used to
// place the daily reset.
// This package has NO external dependencies. Every computation takes the
// current time as a parameter; only System reads the real clock.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinLead is the smallest gap allowed between "now" and a computed target.
// A target closer than this would fire immediately after being armed.
const MinLead = time.Second

// DateLayout is the calendar-date format persisted as the last reset date.
const DateLayout = "2006-01-02"

// TimeSource supplies the current wall-clock time.
type TimeSource interface {
	Now() time.Time
}

// System reads the host clock in a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem returns a System clock reporting times in loc.
// A nil loc means time.Local.
func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.Local
	}
	return System{loc: loc}
}

// Now returns the current time in the clock's location.
func (s System) Now() time.Time {
	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc)
}

// Location returns the clock's location.
func (s System) Location() *time.Location {
	if s.loc == nil {
		return time.Local
	}
	return s.loc
}

// FireTime is the fixed time-of-day at which the daily reset fires.
type FireTime struct {
	Hour   int
	Minute int
	Second int
}

// DefaultFireTime is 09:17:00, a few minutes after the market open the
// signals are produced for.
var DefaultFireTime = FireTime{Hour: 9, Minute: 17, Second: 0}

// ErrInvalidFireTime indicates a fire time outside 00:00:00-23:59:59.
var ErrInvalidFireTime = errors.New("clock: invalid fire time")

// ParseFireTime parses "HH:MM" or "HH:MM:SS".
func ParseFireTime(s string) (FireTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return FireTime{}, fmt.Errorf("%w: %q", ErrInvalidFireTime, s)
	}

	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return FireTime{}, fmt.Errorf("%w: %q", ErrInvalidFireTime, s)
		}
		vals[i] = n
	}

	ft := FireTime{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if err := ft.Validate(); err != nil {
		return FireTime{}, err
	}
	return ft, nil
}

// Validate reports whether every field is within its clock range.
func (f FireTime) Validate() error {
	if f.Hour < 0 || f.Hour > 23 || f.Minute < 0 || f.Minute > 59 || f.Second < 0 || f.Second > 59 {
		return fmt.Errorf("%w: %02d:%02d:%02d", ErrInvalidFireTime, f.Hour, f.Minute, f.Second)
	}
	return nil
}

// String formats the fire time as HH:MM:SS.
func (f FireTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", f.Hour, f.Minute, f.Second)
}

// TodayAt returns now's calendar date at the fire time, in now's location.
func TodayAt(now time.Time, ft FireTime) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, ft.Hour, ft.Minute, ft.Second, 0, now.Location())
}

// TomorrowAt returns the calendar day after now's date at the fire time.
// The advance is by calendar day, so the wall-clock time is kept across
// daylight-saving transitions.
func TomorrowAt(now time.Time, ft FireTime) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, ft.Hour, ft.Minute, ft.Second, 0, now.Location())
}

// NextAfter returns today's fire time if it is still at least MinLead ahead
// of now, otherwise tomorrow's.
func NextAfter(now time.Time, ft FireTime) time.Time {
	candidate := TodayAt(now, ft)
	if candidate.Sub(now) < MinLead {
		candidate = TomorrowAt(now, ft)
	}
	return ensureLead(now, candidate, ft)
}

// FollowingAfter returns the fire time on the calendar day after now,
// regardless of now's time of day. Used right after a fire so the next
// reset never lands on the same date.
func FollowingAfter(now time.Time, ft FireTime) time.Time {
	return ensureLead(now, TomorrowAt(now, ft), ft)
}

// ensureLead pushes target forward by calendar days until it is at least
// MinLead after now.
func ensureLead(now, target time.Time, ft FireTime) time.Time {
	for target.Sub(now) < MinLead {
		target = TomorrowAt(target, ft)
	}
	return target
}

// Date formats t's calendar date as YYYY-MM-DD.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}
