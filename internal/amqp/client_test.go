package amqp

import (
	"testing"
	"time"
)

func TestNewGoalEventMessage(t *testing.T) {
	msg := NewGoalEventMessage(42, "goal_completed")

	if msg.ID != 42 {
		t.Errorf("NewGoalEventMessage() ID = %v, want 42", msg.ID)
	}
	if msg.Event != "goal_completed" {
		t.Errorf("NewGoalEventMessage() Event = %q, want goal_completed", msg.Event)
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewGoalEventMessage() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewGoalEventMessage() Timestamp should be recent")
	}
}

func TestGoalEventMessage_JSON(t *testing.T) {
	timestamp := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	msg := &GoalEventMessage{
		ID:        7,
		Event:     "goal_reverted",
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := GoalEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("GoalEventMessageFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID {
		t.Errorf("Parsed ID = %v, want %v", parsed.ID, msg.ID)
	}
	if parsed.Event != msg.Event {
		t.Errorf("Parsed Event = %q, want %q", parsed.Event, msg.Event)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestGoalEventMessage_InvalidJSON(t *testing.T) {
	if _, err := GoalEventMessageFromJSON([]byte(`{"id": "not_a_number"}`)); err == nil {
		t.Error("GoalEventMessageFromJSON() should fail with invalid JSON")
	}
}
