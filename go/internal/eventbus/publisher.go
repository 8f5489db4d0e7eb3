package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/arena/go/internal/timer"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamPublisher mirrors timer lifecycle events onto a JetStream stream.
// Publish only enqueues; Run does the network work.
type JetStreamPublisher struct {
	nc     *nats.Conn
	sink   sink
	config Config
	queue  chan timer.Event
}

// Verify that JetStreamPublisher can be plugged into the engines
var _ timer.Publisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher connects to NATS and creates or updates the stream
func NewJetStreamPublisher(cfg Config) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("arena-timer"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	p := newPublisher(cfg, &jetStreamSink{js: js, stream: cfg.StreamName})
	p.nc = nc
	return p, nil
}

func newPublisher(cfg Config, s sink) *JetStreamPublisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &JetStreamPublisher{
		sink:   s,
		config: cfg,
		queue:  make(chan timer.Event, cfg.QueueSize),
	}
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg Config) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Timer lifecycle events",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

// Publish implements timer.Publisher. Ticks are skipped and a full queue drops the event.
func (p *JetStreamPublisher) Publish(ev timer.Event) {
	if !ev.IsLifecycle() {
		return
	}
	select {
	case p.queue <- ev:
	default:
		log.Warn().
			Str("timer", ev.Timer).
			Str("event_type", string(ev.Type)).
			Str("event_id", ev.ID.String()).
			Msg("event bus queue full, dropping event")
	}
}

// Run publishes queued events until ctx is done
func (p *JetStreamPublisher) Run(ctx context.Context) {
	log.Info().
		Str("stream", p.config.StreamName).
		Str("subject_prefix", p.config.SubjectPrefix).
		Msg("event bus publisher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("pending", len(p.queue)).Msg("event bus publisher stopped")
			return
		case ev := <-p.queue:
			if err := p.send(ctx, ev); err != nil {
				log.Error().
					Err(err).
					Str("timer", ev.Timer).
					Str("event_type", string(ev.Type)).
					Str("event_id", ev.ID.String()).
					Msg("failed to publish timer event")
			}
		}
	}
}

// Subject returns the subject an event is published on
func (p *JetStreamPublisher) Subject(ev timer.Event) string {
	return fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, ev.Timer, ev.Type)
}

func (p *JetStreamPublisher) send(ctx context.Context, ev timer.Event) error {
	data, err := json.Marshal(Envelope{
		EventID:   ev.ID.String(),
		EventType: string(ev.Type),
		Timer:     ev.Timer,
		Timestamp: ev.Timestamp.UTC(),
		Payload:   ev.Snapshot,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	header := nats.Header{
		"Event-Type": []string{string(ev.Type)},
		"Timer":      []string{ev.Timer},
		"Event-ID":   []string{ev.ID.String()},
	}
	subject := p.Subject(ev)

	// The message ID makes retries idempotent inside the duplicate window
	for attempt := 0; ; attempt++ {
		err = p.sink.publish(ctx, subject, ev.ID.String(), header, data)
		if err == nil || attempt >= p.config.MaxRetries {
			return err
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Str("subject", subject).
			Msg("retrying timer event publish")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.config.RetryDelay):
		}
	}
}

// Close closes the NATS connection
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

type jetStreamSink struct {
	js     jetstream.JetStream
	stream string
}

func (s *jetStreamSink) publish(ctx context.Context, subject, msgID string, header nats.Header, data []byte) error {
	ack, err := s.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  header,
	},
		jetstream.WithMsgID(msgID),
		jetstream.WithExpectStream(s.stream),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", msgID).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published to JetStream")
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
