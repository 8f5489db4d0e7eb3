package gateway

import (
	"time"

	"github.com/mcdev12/arena/go/internal/timer"
)

// MessageTypeSync is sent once to every new connection with the current snapshot
const MessageTypeSync timer.EventType = "TimerSync"

// TimerMessage is the envelope pushed to overlay clients
type TimerMessage struct {
	ID        string          `json:"id"`        // Event UUID
	Timer     string          `json:"timer"`     // Timer name
	Type      timer.EventType `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      timer.Snapshot  `json:"data"`      // Snapshot after the event
}

// messageFromEvent converts an engine event to its wire form
func messageFromEvent(ev timer.Event) *TimerMessage {
	return &TimerMessage{
		ID:        ev.ID.String(),
		Timer:     ev.Timer,
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		Data:      ev.Snapshot,
	}
}

// syncMessage builds the initial state message for a new connection
func syncMessage(snap timer.Snapshot) *TimerMessage {
	return &TimerMessage{
		Timer:     snap.Timer,
		Type:      MessageTypeSync,
		Timestamp: time.Now(),
		Data:      snap,
	}
}
