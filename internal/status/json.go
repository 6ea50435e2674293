package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Armed         bool         `json:"armed"`
	NextReset     string       `json:"next_reset,omitempty"`
	Permission    bool         `json:"permission_granted"`
	LastSignal    string       `json:"last_signal"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	LastAttempt   *AttemptJSON `json:"last_attempt,omitempty"`
	LastReset     *ResetJSON   `json:"last_reset,omitempty"`
	ResetCount    int          `json:"reset_count"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// AttemptJSON describes the most recent scheduling attempt.
type AttemptJSON struct {
	Trigger   string `json:"trigger"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ResetJSON describes the most recent reset.
type ResetJSON struct {
	ID        string `json:"id,omitempty"`
	Date      string `json:"date"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	FireTime string `json:"fire_time"`
	Timezone string `json:"timezone"`
	Broker   string `json:"broker"`
	HTTPAddr string `json:"http_addr"`
	DB       string `json:"db"`
	ArmPin   int    `json:"arm_pin"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Armed:         snap.Armed(),
		NextReset:     formatTime(snap.NextTarget),
		Permission:    snap.PermissionGranted,
		LastSignal:    snap.LastSignal,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		ResetCount:    snap.Resets,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			FireTime: snap.Config.FireTime,
			Timezone: snap.Config.Timezone,
			Broker:   snap.Config.Broker,
			HTTPAddr: snap.Config.HTTPAddr,
			DB:       snap.Config.DB,
			ArmPin:   snap.Config.ArmPin,
		},
	}

	if snap.LastTrigger != "" {
		inner.LastAttempt = &AttemptJSON{
			Trigger:   snap.LastTrigger,
			Outcome:   snap.LastOutcome,
			Error:     snap.LastError,
			Timestamp: formatTime(snap.LastAttemptAt),
		}
	}
	if snap.LastResetDate != "" {
		inner.LastReset = &ResetJSON{
			ID:        snap.LastResetID,
			Date:      snap.LastResetDate,
			Timestamp: formatTime(snap.LastResetAt),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
