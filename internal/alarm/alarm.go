// Package alarm registers one-shot wake-ups at absolute times.
// Each callback id owns a single slot: registering again replaces the
// pending wake-up instead of adding a second one.
package alarm

import (
	"errors"
	"time"
)

// Port arms a one-shot wake-up for callbackID at fireAt, replacing any
// wake-up already pending for the same id.
type Port interface {
	Register(fireAt time.Time, callbackID string) error
}

// Delivery is a fired wake-up.
type Delivery struct {
	CallbackID   string
	ScheduledFor time.Time
	DeliveredAt  time.Time
}

// Late reports how far after its scheduled time the delivery arrived.
func (d Delivery) Late() time.Duration {
	if d.DeliveredAt.Before(d.ScheduledFor) {
		return 0
	}
	return d.DeliveredAt.Sub(d.ScheduledFor)
}

var (
	// ErrPastFireTime indicates a registration for a time that has already passed.
	ErrPastFireTime = errors.New("alarm: fire time is not in the future")

	// ErrStopped indicates a registration after the alarm was stopped.
	ErrStopped = errors.New("alarm: stopped")

	// ErrEmptyCallbackID indicates a registration without a callback id.
	ErrEmptyCallbackID = errors.New("alarm: empty callback id")
)
