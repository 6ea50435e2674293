// Package mqtt publishes reset telemetry with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for fired resets.
const Topic = "signals/reset/events"

// TopicSystem is the MQTT topic for lifecycle and scheduling events.
const TopicSystem = "signals/reset/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventBoot        = "BOOT"
	EventScheduled   = "SCHEDULED"
	EventShutdown    = "SHUTDOWN"
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishReset sends a fired-reset event.
	// Returns error if publishing fails (should not crash the process).
	PublishReset(event ResetEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ResetEvent describes one fired reset and what was armed after it.
type ResetEvent struct {
	ID           string
	Timestamp    time.Time
	Date         string
	ScheduledFor time.Time // zero when unknown
	Next         time.Time // zero when re-arming failed
	Cleared      bool
	Error        string
}

// SystemEvent represents a lifecycle event (startup, boot, shutdown, scheduled).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message body for a reset event.
type Payload struct {
	Reset ResetPayload `json:"reset"`
}

// ResetPayload contains the reset details.
type ResetPayload struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Date         string `json:"date"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	Next         string `json:"next,omitempty"`
	Cleared      bool   `json:"cleared"`
	Error        string `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for a reset event.
func FormatPayload(event ResetEvent) ([]byte, error) {
	p := ResetPayload{
		ID:        event.ID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Date:      event.Date,
		Cleared:   event.Cleared,
		Error:     event.Error,
	}
	if !event.ScheduledFor.IsZero() {
		p.ScheduledFor = event.ScheduledFor.UTC().Format(time.RFC3339)
	}
	if !event.Next.IsZero() {
		p.Next = event.Next.UTC().Format(time.RFC3339)
	}
	return json.Marshal(Payload{Reset: p})
}

// SystemPayload is the message body for events without a status snapshot
// (LWT, RECONNECTED).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
