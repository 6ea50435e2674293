package alarm

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// DeliveryBuffer is the capacity of the channel returned by CronAlarm.C.
const DeliveryBuffer = 4

// WatchInterval is how often armed slots are compared against the wall
// clock. Cron arms its timer on the monotonic clock, which does not follow
// wall-clock steps (NTP sync after boot without an RTC) or suspend, so a
// slot can pass on the wall clock long before cron wakes for it.
const WatchInterval = 30 * time.Second

// oneShot is a cron.Schedule that activates exactly once.
type oneShot struct {
	at time.Time
}

// Next returns the activation time while it is still ahead of t, then the
// zero time, which cron treats as "never again".
func (s oneShot) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}

type slot struct {
	entry cron.EntryID
	at    time.Time
}

// CronAlarm is a Port backed by an in-process robfig/cron scheduler.
// Fired wake-ups are delivered on C so a single loop can handle them.
type CronAlarm struct {
	mu      sync.Mutex
	cron    *cron.Cron
	slots   map[string]slot
	ch      chan Delivery
	now     func() time.Time
	stopped bool
	logger  *log.Logger
}

// NewCronAlarm creates an alarm evaluating times in loc. Call Start to arm it.
func NewCronAlarm(loc *time.Location, logger *log.Logger) *CronAlarm {
	if loc == nil {
		loc = time.Local
	}
	a := &CronAlarm{
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{logger})),
		slots:  make(map[string]slot),
		ch:     make(chan Delivery, DeliveryBuffer),
		now:    func() time.Time { return time.Now().In(loc) },
		logger: logger,
	}
	a.cron.Schedule(cron.Every(WatchInterval), cron.FuncJob(a.checkDue))
	return a
}

// Start runs the underlying cron scheduler in its own goroutine.
func (a *CronAlarm) Start() {
	a.cron.Start()
}

// Stop halts the scheduler and waits for in-flight deliveries.
// Pending wake-ups are dropped, the same way host alarms are lost on restart.
func (a *CronAlarm) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()

	<-a.cron.Stop().Done()
}

// C returns the channel on which fired wake-ups are delivered.
func (a *CronAlarm) C() <-chan Delivery {
	return a.ch
}

// Register arms callbackID for fireAt, atomically superseding any pending
// wake-up for the same id.
func (a *CronAlarm) Register(fireAt time.Time, callbackID string) error {
	if callbackID == "" {
		return ErrEmptyCallbackID
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return ErrStopped
	}
	if !fireAt.After(a.now()) {
		return fmt.Errorf("%w: %s", ErrPastFireTime, fireAt.Format(time.RFC3339))
	}

	if prev, ok := a.slots[callbackID]; ok {
		a.cron.Remove(prev.entry)
	}

	id := a.cron.Schedule(oneShot{at: fireAt}, cron.FuncJob(func() {
		a.deliver(callbackID, fireAt)
	}))
	a.slots[callbackID] = slot{entry: id, at: fireAt}

	a.logger.Debug("alarm armed", "callback", callbackID, "fire_at", fireAt)
	return nil
}

// Pending returns the armed time for callbackID, if any.
func (a *CronAlarm) Pending(callbackID string) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.slots[callbackID]
	return s.at, ok
}

func (a *CronAlarm) deliver(callbackID string, fireAt time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.slots[callbackID]
	if !ok || !s.at.Equal(fireAt) {
		// Superseded, or already delivered by checkDue.
		return
	}
	a.deliverLocked(callbackID, s)
}

// checkDue delivers every slot whose time has passed on the wall clock.
func (a *CronAlarm) checkDue() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for id, s := range a.slots {
		if now.Before(s.at) {
			continue
		}
		a.logger.Debug("alarm due on wall clock", "callback", id, "fire_at", s.at)
		a.deliverLocked(id, s)
	}
}

// deliverLocked empties the slot and pushes its delivery. a.mu must be held.
func (a *CronAlarm) deliverLocked(callbackID string, s slot) {
	delete(a.slots, callbackID)
	a.cron.Remove(s.entry)

	d := Delivery{
		CallbackID:   callbackID,
		ScheduledFor: s.at,
		DeliveredAt:  a.now(),
	}
	select {
	case a.ch <- d:
	default:
		a.logger.Error("alarm delivery dropped, receiver not keeping up", "callback", callbackID, "fire_at", s.at)
	}
}

// cronLogger adapts a charmbracelet logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
