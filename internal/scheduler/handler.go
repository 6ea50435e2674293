package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/sweeney/signal-reset/internal/alarm"
	"github.com/sweeney/signal-reset/internal/clock"
	"github.com/sweeney/signal-reset/internal/store"
)

// ResetStateStore is the durable state the reset clears and stamps.
type ResetStateStore interface {
	// ApplyReset clears the last signal and stamps the reset date
	// together: both land or neither does.
	ApplyReset(ctx context.Context, date string) error
	AppendReset(ctx context.Context, r store.Reset) error
}

// FireResult describes one handled fire.
type FireResult struct {
	ResetID      string
	ResetDate    string
	FiredAt      time.Time
	ScheduledFor time.Time
	Next         Target

	// Cleared reports that the reset record was written.
	Cleared bool

	StoreErr    error
	ScheduleErr error
}

// ResetHandler runs when the daily wake-up fires.
type ResetHandler struct {
	store     ResetStateStore
	scheduler *Scheduler
	clock     clock.TimeSource
	logger    *log.Logger
	newID     func() string
}

// NewResetHandler creates a handler that writes to st and re-arms through sched.
func NewResetHandler(st ResetStateStore, sched *Scheduler, clk clock.TimeSource, logger *log.Logger) *ResetHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ResetHandler{
		store:     st,
		scheduler: sched,
		clock:     clk,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// HandleDelivery handles a wake-up from the alarm port. Deliveries for
// other callback ids are ignored.
func (h *ResetHandler) HandleDelivery(ctx context.Context, d alarm.Delivery) (FireResult, error) {
	if d.CallbackID != h.scheduler.CallbackID() {
		h.logger.Warn("ignoring delivery for unknown callback", "callback", d.CallbackID)
		return FireResult{}, nil
	}
	return h.fire(ctx, h.clock.Now(), d.ScheduledFor)
}

// OnFire clears the last signal, stamps now's date as the last reset date,
// and arms the next calendar day's fire time.
//
// The reset and the re-arm are independent: a store failure never stops
// the re-arm, and a scheduling failure never rolls back the reset. Both
// are returned, joined.
func (h *ResetHandler) OnFire(ctx context.Context, now time.Time) (FireResult, error) {
	return h.fire(ctx, now, time.Time{})
}

func (h *ResetHandler) fire(ctx context.Context, now, scheduledFor time.Time) (FireResult, error) {
	res := FireResult{
		ResetID:      h.newID(),
		ResetDate:    clock.Date(now),
		FiredAt:      now,
		ScheduledFor: scheduledFor,
	}

	if err := h.store.ApplyReset(ctx, res.ResetDate); err != nil {
		res.StoreErr = &SchedulingError{Kind: ErrStoreWriteFailed, Op: "reset", Err: err}
		h.logger.Error("daily reset incomplete", "date", res.ResetDate, "err", res.StoreErr)
	} else {
		res.Cleared = true
		h.logger.Info("daily reset completed, last signal cleared", "date", res.ResetDate, "id", res.ResetID)

		err := h.store.AppendReset(ctx, store.Reset{
			ID:           res.ResetID,
			Date:         res.ResetDate,
			FiredAt:      now,
			ScheduledFor: scheduledFor,
		})
		if err != nil {
			h.logger.Warn("reset history not recorded", "id", res.ResetID, "err", err)
		}
	}

	next, err := h.scheduler.ScheduleFollowing(now)
	res.Next = next
	res.ScheduleErr = err
	h.scheduler.report(Attempt{Trigger: TriggerFire, Now: now, Target: next, Err: err})

	return res, errors.Join(res.StoreErr, res.ScheduleErr)
}
