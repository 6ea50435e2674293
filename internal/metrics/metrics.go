// Package metrics exposes Prometheus collectors for scheduling and resets.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScheduleAttempts counts scheduling attempts by entry point and outcome.
	ScheduleAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_reset_schedule_attempts_total",
			Help: "Scheduling attempts by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	// ResetsTotal counts fires by whether the reset record was written.
	ResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_reset_resets_total",
			Help: "Daily reset fires by result (cleared, store_failed)",
		},
		[]string{"result"},
	)

	// NextFireTimestamp is the armed fire time in unix seconds, 0 when nothing is armed.
	NextFireTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signal_reset_next_fire_timestamp_seconds",
			Help: "Unix time of the armed reset, 0 when none",
		},
	)

	// FireLateness observes how late a delivery ran relative to its target.
	FireLateness = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signal_reset_fire_lateness_seconds",
			Help:    "Delay between the armed fire time and delivery",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300},
		},
	)

	// RequestTotal counts HTTP requests by method, route, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_reset_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(ScheduleAttempts, ResetsTotal, NextFireTimestamp, FireLateness, RequestTotal)
}

// RecordAttempt counts one scheduling attempt and, when it succeeded,
// moves the next-fire gauge to target.
func RecordAttempt(trigger, outcome string, target time.Time) {
	ScheduleAttempts.WithLabelValues(trigger, outcome).Inc()
	if !target.IsZero() {
		NextFireTimestamp.Set(float64(target.Unix()))
	}
}

// ClearNextFire zeroes the next-fire gauge.
func ClearNextFire() {
	NextFireTimestamp.Set(0)
}

// RecordReset counts one fire.
func RecordReset(cleared bool, lateness time.Duration) {
	result := "cleared"
	if !cleared {
		result = "store_failed"
	}
	ResetsTotal.WithLabelValues(result).Inc()
	if lateness > 0 {
		FireLateness.Observe(lateness.Seconds())
	} else {
		FireLateness.Observe(0)
	}
}

// RecordRequest counts an HTTP request.
func RecordRequest(method, route string, statusCode int) {
	RequestTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
}
