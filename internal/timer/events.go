package timer

import "time"

// EventType defines the type of timer event.
type EventType string

const (
	EventStateChange   EventType = "state_change"
	EventTick          EventType = "tick"
	EventQuote         EventType = "quote"
	EventSnapshotError EventType = "snapshot_error"
)

// Event represents a timer update for observers.
type Event struct {
	Type     EventType
	State    string
	RecordID string
	Elapsed  time.Duration
	Quote    string
	Message  string
	At       time.Time
}
