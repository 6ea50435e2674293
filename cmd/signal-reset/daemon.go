package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/sweeney/signal-reset/internal/alarm"
	"github.com/sweeney/signal-reset/internal/boot"
	"github.com/sweeney/signal-reset/internal/clock"
	"github.com/sweeney/signal-reset/internal/config"
	"github.com/sweeney/signal-reset/internal/metrics"
	"github.com/sweeney/signal-reset/internal/mqtt"
	"github.com/sweeney/signal-reset/internal/permission"
	"github.com/sweeney/signal-reset/internal/scheduler"
	"github.com/sweeney/signal-reset/internal/status"
	"github.com/sweeney/signal-reset/internal/store"
	"github.com/sweeney/signal-reset/internal/web"
)

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	fireTime, err := cfg.ParsedFireTime()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	perm, closePerm, err := newPermission(cfg, logger.WithPrefix("permission"))
	if err != nil {
		return fmt.Errorf("init permission: %w", err)
	}
	defer closePerm()

	publisher, err := mqtt.NewRealPublisher(cfg.Broker, logger.WithPrefix("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	clk := clock.NewSystem(loc)
	tracker := status.NewTracker(clk.Now(), status.Config{
		FireTime: fireTime.String(),
		Timezone: loc.String(),
		Broker:   cfg.Broker,
		HTTPAddr: cfg.HTTP,
		DB:       cfg.DB,
		ArmPin:   cfg.ArmPin,
	})
	seedTracker(ctx, tracker, st, logger)

	alarmPort := alarm.NewCronAlarm(loc, logger.WithPrefix("alarm"))
	alarmPort.Start()
	defer alarmPort.Stop()

	sched := scheduler.New(scheduler.Options{
		Clock:      clk,
		Permission: perm,
		Alarm:      alarmPort,
		FireTime:   fireTime,
		Logger:     logger.WithPrefix("scheduler"),
		Observer:   newObserver(tracker, publisher, logger),
	})
	handler := scheduler.NewResetHandler(st, sched, clk, logger.WithPrefix("reset"))

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, sched, st, logger.WithPrefix("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTP)
	}

	detector := boot.NewDetector(afero.NewOsFs(), cfg.BootIDPath, st)
	startup(ctx, detector, sched, publisher, tracker, logger)

	logger.Info("started", "fire_time", fireTime, "timezone", loc, "db", cfg.DB, "broker", cfg.Broker, "arm_pin", cfg.ArmPin)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctx, handler, publisher, publisher, tracker, alarmPort.C(), sigCh, logger)
}

// newPermission returns the arm-switch checker, or a permanent grant when
// no pin is configured.
func newPermission(cfg config.Config, logger *log.Logger) (permission.Checker, func() error, error) {
	if cfg.ArmPin < 0 {
		return permission.Static(true), func() error { return nil }, nil
	}
	lc, err := permission.NewLineChecker(cfg.ArmChip, cfg.ArmPin, cfg.ArmActiveLow, logger)
	if err != nil {
		return nil, nil, err
	}
	return lc, lc.Close, nil
}

type recordReader interface {
	Record(ctx context.Context) (store.ResetRecord, error)
}

// seedTracker loads the persisted reset record into the tracker.
func seedTracker(ctx context.Context, tracker *status.Tracker, st recordReader, logger *log.Logger) {
	rec, err := st.Record(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return
	case err != nil:
		logger.Warn("cannot read reset record", "err", err)
		return
	}
	tracker.SetLastResetDate(rec.LastResetDate)
	tracker.SetLastSignal(rec.LastSignalType)
}

// newObserver feeds every scheduling attempt into metrics and the tracker.
// Successful on-demand re-arms are also announced over MQTT.
func newObserver(tracker *status.Tracker, publisher mqtt.Publisher, logger *log.Logger) scheduler.Observer {
	return func(a scheduler.Attempt) {
		outcome := scheduler.OutcomeOf(a.Err)
		fired := a.Trigger == scheduler.TriggerFire

		metrics.RecordAttempt(string(a.Trigger), string(outcome), a.Target.At)
		if fired && a.Err != nil {
			metrics.ClearNextFire()
		}
		tracker.RecordAttempt(string(a.Trigger), string(outcome), a.Now, a.Target.At, a.Err, fired)

		switch outcome {
		case scheduler.OutcomeScheduled:
			tracker.SetPermission(true)
		case scheduler.OutcomePermissionDenied:
			tracker.SetPermission(false)
		}

		if a.Trigger == scheduler.TriggerManual && a.Err == nil {
			event := mqtt.SystemEvent{
				Timestamp:  a.Now,
				Event:      mqtt.EventScheduled,
				Reason:     string(a.Trigger),
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), mqtt.EventScheduled, string(a.Trigger)),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn("failed to publish scheduled event", "err", err)
			}
		}
	}
}

type bootDetector interface {
	Detect(ctx context.Context) (boot.Result, error)
}

// startup arms the first reset of this process. After a host reboot the
// boot entry point runs, otherwise the startup one; both announce the
// result as a retained system event.
func startup(ctx context.Context, detector bootDetector, sched *scheduler.Scheduler, publisher mqtt.Publisher, tracker *status.Tracker, logger *log.Logger) {
	res, err := detector.Detect(ctx)
	if err != nil {
		logger.Warn("boot detection incomplete", "err", err)
	}

	event := mqtt.EventStartup
	if res.Boot {
		event = mqtt.EventBoot
		logger.Info("first start since host boot", "boot_id", res.BootID, "previous", res.Previous)
		_, err = sched.OnBoot()
	} else {
		_, err = sched.OnStartup()
	}

	reason := string(scheduler.OutcomeOf(err))
	snap := tracker.Snapshot()
	sysEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(sysEvent); err != nil {
		logger.Warn("failed to publish startup event", "event", event, "err", err)
	} else {
		logger.Info("published startup event", "event", event)
	}
}

func runLoop(ctx context.Context, handler *scheduler.ResetHandler, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, fires <-chan alarm.Delivery, sig <-chan os.Signal, logger *log.Logger) error {
	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: time.Now(),
				Event:     mqtt.EventShutdown,
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.Timestamp = snap.Now
				event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", "err", err)
			} else {
				logger.Info("published shutdown event")
			}
			return nil

		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-fires:
			if !ok {
				return errors.New("alarm delivery channel closed")
			}
			res, err := handler.HandleDelivery(ctx, d)
			if res.ResetID == "" {
				continue
			}
			if err != nil {
				logger.Warn("reset fired with errors", "id", res.ResetID, "err", err)
			}

			metrics.RecordReset(res.Cleared, d.Late())
			if tracker != nil && res.Cleared {
				tracker.RecordReset(res.ResetID, res.ResetDate, res.FiredAt)
			}

			if err := publisher.PublishReset(resetEvent(res, err)); err != nil {
				logger.Warn("publish error", "err", err)
			}
			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

func resetEvent(res scheduler.FireResult, err error) mqtt.ResetEvent {
	event := mqtt.ResetEvent{
		ID:           res.ResetID,
		Timestamp:    res.FiredAt,
		Date:         res.ResetDate,
		ScheduledFor: res.ScheduledFor,
		Next:         res.Next.At,
		Cleared:      res.Cleared,
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}
