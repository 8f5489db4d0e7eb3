package timer

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of timer event
type EventType string

const (
	EventTypeStarted       EventType = "TimerStarted"
	EventTypeCountdownStep EventType = "CountdownStep"
	EventTypeRunning       EventType = "TimerRunning"
	EventTypePaused        EventType = "TimerPaused"
	EventTypeResumed       EventType = "TimerResumed"
	EventTypeTimeRemoved   EventType = "TimeRemoved"
	EventTypeFinished      EventType = "TimerFinished"
	EventTypeRestarted     EventType = "TimerRestarted"
	EventTypeTick          EventType = "TimerTick"
)

// Event is emitted by an engine after every state change
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timer     string    `json:"timer"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// IsLifecycle reports whether the event marks a state transition rather than a clock tick.
func (e Event) IsLifecycle() bool {
	return e.Type != EventTypeTick
}

// Publisher receives engine events. Publish is called while the engine holds
// its lock, so implementations must not block or call back into the engine.
type Publisher interface {
	Publish(event Event)
}

// MultiPublisher fans an event out to several publishers
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(event)
		}
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
