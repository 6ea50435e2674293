// Package scheduler arms the daily reset and handles it when it fires.
//
// A single operation, ScheduleNext, computes the next fire time and
// (re)registers the wake-up. Application start, boot recovery and on-demand
// requests all go through it; the fire path uses ScheduleFollowing, which
// always moves to the next calendar day. Nothing here retries: a failed
// attempt is reported and the next entry point tries again.
package scheduler

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/signal-reset/internal/alarm"
	"github.com/sweeney/signal-reset/internal/clock"
	"github.com/sweeney/signal-reset/internal/permission"
)

// DefaultCallbackID identifies the reset wake-up at the alarm port.
const DefaultCallbackID = "daily-reset"

// Trigger names the entry point that asked for scheduling.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerBoot    Trigger = "boot"
	TriggerFire    Trigger = "fire"
	TriggerManual  Trigger = "manual"
)

// Target is a successfully armed fire time.
type Target struct {
	At         time.Time
	ComputedAt time.Time
}

// Lead returns how far ahead of its computation the target lies.
func (t Target) Lead() time.Duration {
	return t.At.Sub(t.ComputedAt)
}

// Attempt is the outcome of one scheduling call, handed to the Observer.
type Attempt struct {
	Trigger Trigger
	Now     time.Time
	Target  Target
	Err     error
}

// Observer is told about every attempt made through an entry point.
type Observer func(Attempt)

// Options configure a Scheduler.
type Options struct {
	Clock      clock.TimeSource
	Permission permission.Checker
	Alarm      alarm.Port
	FireTime   clock.FireTime
	CallbackID string
	Logger     *log.Logger
	Observer   Observer
}

// Scheduler computes fire times and keeps the single wake-up armed.
// It holds no record of what is currently armed; every call recomputes
// from now and the fire time. Safe for concurrent use because the alarm
// port replaces registrations atomically.
type Scheduler struct {
	clock      clock.TimeSource
	permission permission.Checker
	alarm      alarm.Port
	fireTime   clock.FireTime
	callbackID string
	logger     *log.Logger
	observer   Observer
}

// New creates a Scheduler. An empty CallbackID means DefaultCallbackID.
func New(opts Options) *Scheduler {
	id := opts.CallbackID
	if id == "" {
		id = DefaultCallbackID
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		clock:      opts.Clock,
		permission: opts.Permission,
		alarm:      opts.Alarm,
		fireTime:   opts.FireTime,
		callbackID: id,
		logger:     logger,
		observer:   opts.Observer,
	}
}

// CallbackID returns the id the wake-up is registered under.
func (s *Scheduler) CallbackID() string {
	return s.callbackID
}

// ScheduleNext arms today's fire time if it is still ahead of now, else
// tomorrow's. Permission is checked first; when denied nothing is registered.
func (s *Scheduler) ScheduleNext(now time.Time) (Target, error) {
	return s.arm(now, clock.NextAfter)
}

// ScheduleFollowing arms the fire time on the calendar day after now.
func (s *Scheduler) ScheduleFollowing(now time.Time) (Target, error) {
	return s.arm(now, clock.FollowingAfter)
}

func (s *Scheduler) arm(now time.Time, next func(time.Time, clock.FireTime) time.Time) (Target, error) {
	if !s.permission.IsGranted() {
		return Target{}, &SchedulingError{Kind: ErrPermissionDenied, Op: "check permission"}
	}

	at := next(now, s.fireTime)
	if err := s.alarm.Register(at, s.callbackID); err != nil {
		return Target{}, &SchedulingError{Kind: ErrPortRegistrationFailed, Op: "register " + at.Format(time.RFC3339), Err: err}
	}
	return Target{At: at, ComputedAt: now}, nil
}

// OnStartup is the application-start entry point.
func (s *Scheduler) OnStartup() (Target, error) {
	return s.enter(TriggerStartup)
}

// OnBoot is the boot-recovery entry point. Host alarms do not survive a
// restart, so this must run once per boot.
func (s *Scheduler) OnBoot() (Target, error) {
	return s.enter(TriggerBoot)
}

// OnManual is the on-demand entry point (status page, CLI).
func (s *Scheduler) OnManual() (Target, error) {
	return s.enter(TriggerManual)
}

func (s *Scheduler) enter(trigger Trigger) (Target, error) {
	now := s.clock.Now()
	target, err := s.ScheduleNext(now)
	s.report(Attempt{Trigger: trigger, Now: now, Target: target, Err: err})
	return target, err
}

// report logs an attempt and forwards it to the observer.
func (s *Scheduler) report(a Attempt) {
	switch OutcomeOf(a.Err) {
	case OutcomeScheduled:
		s.logger.Info("next reset scheduled", "trigger", a.Trigger, "target", a.Target.At.Format(time.RFC3339), "in", a.Target.Lead().Round(time.Second))
	case OutcomePermissionDenied:
		s.logger.Warn("cannot schedule reset, precise scheduling not permitted", "trigger", a.Trigger)
	default:
		s.logger.Error("cannot schedule reset", "trigger", a.Trigger, "err", a.Err)
	}

	if s.observer != nil {
		s.observer(a)
	}
}
