package eventbus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds the JetStream connection, stream, and queue settings
type Config struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
	QueueSize       int
	MaxRetries      int
	RetryDelay      time.Duration
}

// DefaultConfig returns the settings used when only NATS_URL is provided
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		StreamName:      "ARENA_TIMERS",
		SubjectPrefix:   "arena.timers",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		QueueSize:       256,
		MaxRetries:      3,
		RetryDelay:      250 * time.Millisecond,
	}
}

// Envelope is the JSON body of every published message
type Envelope struct {
	EventID   string      `json:"eventId"`
	EventType string      `json:"eventType"`
	Timer     string      `json:"timer"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// sink delivers one encoded message. JetStream in production, a recorder in tests.
type sink interface {
	publish(ctx context.Context, subject, msgID string, header nats.Header, data []byte) error
}
