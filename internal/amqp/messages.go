package amqp

import (
	"encoding/json"
	"time"
)

// GoalEventMessage is a lightweight notification about a goal lifecycle event.
// It carries only the event row ID and the event name, the worker fetches the
// full event from the database.
type GoalEventMessage struct {
	ID        int64     `json:"id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// NewGoalEventMessage creates a notification message for one event row
func NewGoalEventMessage(id int64, event string) *GoalEventMessage {
	return &GoalEventMessage{
		ID:        id,
		Event:     event,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *GoalEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// GoalEventMessageFromJSON creates a message from JSON bytes
func GoalEventMessageFromJSON(data []byte) (*GoalEventMessage, error) {
	var msg GoalEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
