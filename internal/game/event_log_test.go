package game

import (
	"path/filepath"
	"testing"
)

// TestEventLogRoundTrip tests events written through zstd read back in order
func TestEventLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl.zst")
	el := NewEventLog()
	if el.Emit(NewEvent(EventTypeTick, 0, "engine", nil)) {
		t.Error("Expected Emit to fail before Start")
	}
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if !el.Emit(NewEvent(EventTypeForceApplied, uint64(i), "head", ForcePayload{Limb: "head", Fuel: float64(100 - i)})) {
			t.Fatalf("Expected event %d accepted", i)
		}
	}
	el.Emit(NewEvent(EventTypeCollected, 9, "collectible:1", CollectPayload{ID: 1, Value: 100}))
	el.Stop()
	el.Stop()

	events, err := ReadEventLog(path)
	if err != nil {
		t.Fatalf("ReadEventLog failed: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("Expected 6 events, got %d", len(events))
	}
	for i := 0; i < 5; i++ {
		if events[i].Type != EventTypeForceApplied || events[i].TickNum != uint64(i) || events[i].Sequence != uint64(i+1) {
			t.Errorf("Event %d: unexpected %+v", i, events[i])
		}
	}
	if events[5].Type != EventTypeCollected || events[5].Source != "collectible:1" {
		t.Errorf("Unexpected last event %+v", events[5])
	}
	if el.Accepted() != 6 || el.Dropped() != 0 {
		t.Errorf("Expected 6 total 0 dropped, got %d and %d", el.Accepted(), el.Dropped())
	}
}

// TestEventLogSourceLimit tests one chatty source is throttled
func TestEventLogSourceLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < SourceEventsPerSec; i++ {
		if el.Emit(NewEvent(EventTypeForceApplied, 0, "head", nil)) {
			accepted++
		}
	}
	if accepted >= SourceEventsPerSec {
		t.Errorf("Expected burst limit below %d, got %d accepted", SourceEventsPerSec, accepted)
	}
	if !el.Emit(NewEvent(EventTypeTick, 0, "engine", nil)) {
		t.Error("Expected another source to pass")
	}
}
