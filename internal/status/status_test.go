package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func fixedTracker(start, now time.Time, cfg Config) *Tracker {
	tr := NewTracker(start, cfg)
	tr.now = func() time.Time { return now }
	return tr
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{FireTime: "09:17:00", Broker: "tcp://localhost:1883", HTTPAddr: ":8080", ArmPin: -1}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.FireTime != "09:17:00" {
		t.Errorf("Config.FireTime: got %q", snap.Config.FireTime)
	}
	if snap.Armed() {
		t.Error("expected not armed initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordAttemptSuccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	target := time.Date(2026, 1, 5, 9, 17, 0, 0, time.UTC)

	tr.RecordAttempt("startup", "scheduled", at, target, nil, false)

	snap := tr.Snapshot()
	if !snap.NextTarget.Equal(target) {
		t.Errorf("NextTarget: got %v, want %v", snap.NextTarget, target)
	}
	if snap.LastTrigger != "startup" || snap.LastOutcome != "scheduled" || snap.LastError != "" {
		t.Errorf("unexpected attempt fields: %+v", snap)
	}
}

func TestRecordAttemptFailureKeepsTarget(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	target := time.Date(2026, 1, 5, 9, 17, 0, 0, time.UTC)
	tr.RecordAttempt("startup", "scheduled", time.Now(), target, nil, false)

	tr.RecordAttempt("manual", "permission_denied", time.Now(), time.Time{}, errors.New("denied"), false)

	snap := tr.Snapshot()
	if !snap.NextTarget.Equal(target) {
		t.Errorf("failed manual attempt should keep armed target, got %v", snap.NextTarget)
	}
	if snap.LastError != "denied" {
		t.Errorf("LastError: got %q", snap.LastError)
	}
}

func TestRecordAttemptFailureAfterFireClearsTarget(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordAttempt("startup", "scheduled", time.Now(), time.Date(2026, 1, 5, 9, 17, 0, 0, time.UTC), nil, false)

	tr.RecordAttempt("fire", "permission_denied", time.Now(), time.Time{}, errors.New("denied"), true)

	if tr.Snapshot().Armed() {
		t.Error("a consumed target should not be reported as armed")
	}
}

func TestRecordReset(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetLastResetDate("2026-01-04")
	tr.SetLastSignal("BUY")
	if tr.Snapshot().LastResetDate != "2026-01-04" {
		t.Fatal("seeded date not stored")
	}

	at := time.Date(2026, 1, 5, 9, 17, 0, 0, time.UTC)
	tr.RecordReset("abc", "2026-01-05", at)
	tr.RecordReset("def", "2026-01-06", at.Add(24*time.Hour))

	snap := tr.Snapshot()
	if snap.LastResetID != "def" || snap.LastResetDate != "2026-01-06" {
		t.Errorf("unexpected last reset: %+v", snap)
	}
	if snap.LastSignal != "" {
		t.Errorf("reset should clear the last signal, got %q", snap.LastSignal)
	}
	if snap.Resets != 2 {
		t.Errorf("Resets: got %d, want 2", snap.Resets)
	}
}

func TestSetPermissionAndMQTT(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetPermission(true)
	tr.SetMQTTConnected(true)
	snap := tr.Snapshot()
	if !snap.PermissionGranted || !snap.MQTTConnected {
		t.Errorf("flags not set: %+v", snap)
	}
	tr.SetPermission(false)
	if tr.Snapshot().PermissionGranted {
		t.Error("expected permission revoked")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := fixedTracker(start, start.Add(90*time.Minute), Config{})
	if got := tr.Snapshot().Uptime(); got != 90*time.Minute {
		t.Errorf("Uptime: got %v, want 90m", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	snap := tr.Snapshot()
	snap.Resets = 42
	if tr.Snapshot().Resets != 0 {
		t.Error("modifying snapshot should not affect tracker")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)
	tr := fixedTracker(start, now, Config{FireTime: "09:17:00", Timezone: "UTC", Broker: "tcp://b:1883", HTTPAddr: ":8080", DB: "reset.db", ArmPin: -1})
	tr.SetPermission(true)
	tr.RecordAttempt("startup", "scheduled", start, time.Date(2026, 1, 5, 9, 17, 0, 0, time.UTC), nil, false)

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if !s.Armed || s.NextReset != "2026-01-05T09:17:00Z" {
		t.Errorf("unexpected armed/next: %v %q", s.Armed, s.NextReset)
	}
	if !s.Permission {
		t.Error("expected permission_granted=true")
	}
	if s.UptimeSeconds != 3600 {
		t.Errorf("uptime: got %d", s.UptimeSeconds)
	}
	if s.LastAttempt == nil || s.LastAttempt.Trigger != "startup" {
		t.Errorf("unexpected last attempt: %+v", s.LastAttempt)
	}
	if s.LastReset != nil {
		t.Errorf("expected no last reset, got %+v", s.LastReset)
	}
	if s.Config.ArmPin != -1 || s.Config.FireTime != "09:17:00" {
		t.Errorf("unexpected config: %+v", s.Config)
	}
	if s.Event != "" {
		t.Errorf("web JSON should not carry an event, got %q", s.Event)
	}
}

func TestFormatJSONNotArmed(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if raw["status"]["armed"] != false {
		t.Errorf("armed: got %v", raw["status"]["armed"])
	}
	if _, ok := raw["status"]["next_reset"]; ok {
		t.Error("next_reset should be omitted when not armed")
	}
	if _, ok := raw["status"]["last_attempt"]; ok {
		t.Error("last_attempt should be omitted before any attempt")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordReset("abc", "2026-01-05", time.Date(2026, 1, 5, 9, 17, 0, 0, time.UTC))

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected event/reason: %q %q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.LastReset == nil || parsed.Status.LastReset.ID != "abc" {
		t.Errorf("unexpected last reset: %+v", parsed.Status.LastReset)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "STARTUP", ""), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordAttempt("manual", "scheduled", time.Now(), time.Now().Add(time.Hour), nil, false)
				tr.RecordReset("id", "2026-01-05", time.Now())
				tr.SetMQTTConnected(j%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = FormatJSON(tr.Snapshot())
			}
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Resets; got != 1000 {
		t.Errorf("Resets: got %d, want 1000", got)
	}
}
