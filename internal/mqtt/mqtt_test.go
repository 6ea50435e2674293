package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func sampleReset() ResetEvent {
	return ResetEvent{
		ID:           "7f1c",
		Timestamp:    time.Date(2026, 2, 2, 9, 17, 0, 0, time.UTC),
		Date:         "2026-02-02",
		ScheduledFor: time.Date(2026, 2, 2, 9, 17, 0, 0, time.UTC),
		Next:         time.Date(2026, 2, 3, 9, 17, 0, 0, time.UTC),
		Cleared:      true,
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(sampleReset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Reset.ID != "7f1c" {
		t.Errorf("unexpected id: %s", parsed.Reset.ID)
	}
	if parsed.Reset.Timestamp != "2026-02-02T09:17:00Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Reset.Timestamp)
	}
	if parsed.Reset.Date != "2026-02-02" {
		t.Errorf("unexpected date: %s", parsed.Reset.Date)
	}
	if parsed.Reset.Next != "2026-02-03T09:17:00Z" {
		t.Errorf("unexpected next: %s", parsed.Reset.Next)
	}
	if !parsed.Reset.Cleared {
		t.Error("expected cleared=true")
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	payload, err := FormatPayload(sampleReset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"reset":{"id":"7f1c","timestamp":"2026-02-02T09:17:00Z","date":"2026-02-02","scheduled_for":"2026-02-02T09:17:00Z","next":"2026-02-03T09:17:00Z","cleared":true}}`
	if string(payload) != want {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", payload, want)
	}
}

func TestFormatPayloadOmitsZeroTimes(t *testing.T) {
	event := sampleReset()
	event.Next = time.Time{}
	event.ScheduledFor = time.Time{}
	event.Cleared = false
	event.Error = "scheduler: alarm registration failed"

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["reset"]["next"]; ok {
		t.Error("next should be omitted when zero")
	}
	if _, ok := raw["reset"]["scheduled_for"]; ok {
		t.Error("scheduled_for should be omitted when zero")
	}
	if raw["reset"]["error"] != "scheduler: alarm registration failed" {
		t.Errorf("unexpected error field: %v", raw["reset"]["error"])
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	event := sampleReset()
	event.Timestamp = time.Date(2026, 2, 2, 9, 17, 0, 0, loc)

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Reset.Timestamp != "2026-02-02T14:17:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Reset.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "signals/reset/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "signals/reset/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC),
		Event:     EventShutdown,
		Reason:    "SIGTERM",
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T08:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", payload, want)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["system"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
	if raw["system"]["event"] != EventReconnected {
		t.Errorf("unexpected event: %v", raw["system"]["event"])
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: EventStartup, RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Event:     EventOffline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-01-01T00:00:00Z","event":"OFFLINE"}}`
	if string(payload) != want {
		t.Errorf("got %s, want %s", payload, want)
	}
}

func TestFakePublisher(t *testing.T) {
	pub := NewFakePublisher()
	if err := pub.PublishReset(sampleReset()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.Resets) != 1 || len(pub.Payloads) != 1 {
		t.Fatalf("expected 1 reset recorded, got %d", len(pub.Resets))
	}
	if pub.Resets[0].ID != "7f1c" {
		t.Errorf("unexpected id: %s", pub.Resets[0].ID)
	}
}

func TestFakePublisherError(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishError = errors.New("broker down")
	if err := pub.PublishReset(sampleReset()); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.Resets) != 0 {
		t.Error("failed publish should not be recorded")
	}

	pub.PublishSystemError = errors.New("broker down")
	if err := pub.PublishSystem(SystemEvent{Event: EventStartup}); err == nil {
		t.Fatal("expected system error")
	}
}

func TestFakePublisherSystemEventOrder(t *testing.T) {
	pub := NewFakePublisher()
	for _, name := range []string{EventStartup, EventBoot, EventScheduled, EventShutdown} {
		if err := pub.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: name}); err != nil {
			t.Fatalf("publish %s: %v", name, err)
		}
	}
	got := pub.SystemEventNames()
	want := []string{EventStartup, EventBoot, EventScheduled, EventShutdown}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFakePublisherRecordsRetainedFlag(t *testing.T) {
	pub := NewFakePublisher()
	_ = pub.PublishSystem(SystemEvent{Event: EventStartup, Retained: true})
	if !pub.SystemEvents[0].Retained {
		t.Error("expected retained flag to be recorded")
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	pub := NewFakePublisher()
	pub.Connected = true
	_ = pub.PublishReset(sampleReset())
	_ = pub.PublishSystem(SystemEvent{Event: EventBoot})
	_ = pub.Close()
	if !pub.Closed {
		t.Error("expected Closed")
	}

	pub.Reset()
	if pub.Closed || pub.Connected || len(pub.Resets) != 0 || len(pub.SystemEvents) != 0 {
		t.Errorf("Reset did not clear state: %+v", pub)
	}

	if err := pub.PublishReset(sampleReset()); err != nil {
		t.Fatalf("publisher not reusable: %v", err)
	}
}

func TestFakePublisherImplementsInterfaces(t *testing.T) {
	var _ Publisher = NewFakePublisher()
	var _ ConnectionStatus = NewFakePublisher()
	var _ Publisher = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
}
