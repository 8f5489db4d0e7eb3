package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/arena/go/internal/dbconfig"
	"github.com/mcdev12/arena/go/internal/eventbus"
	"github.com/mcdev12/arena/go/internal/gateway"
	"github.com/mcdev12/arena/go/internal/rankings"
	"github.com/mcdev12/arena/go/internal/records"
	"github.com/mcdev12/arena/go/internal/timer"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Registry *timer.Registry
	Timers   *timer.Service
	Gateway  *gateway.Service
	EventBus *eventbus.JetStreamPublisher // nil when NATS_URL is empty
	Rankings *rankings.Handler

	db *sql.DB
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Publishers first: the engines push to them from inside their lock
	gatewayService := gateway.NewService(gateway.DefaultConfig())
	publishers := timer.MultiPublisher{gatewayService.Publisher()}

	var bus *eventbus.JetStreamPublisher
	if natsURL := getEnv("NATS_URL", ""); natsURL != "" {
		busConfig := eventbus.DefaultConfig()
		busConfig.URL = natsURL
		busConfig.StreamName = getEnv("NATS_STREAM", busConfig.StreamName)
		busConfig.QueueSize = getEnvAsInt("NATS_QUEUE_SIZE", busConfig.QueueSize)

		var err error
		bus, err = eventbus.NewJetStreamPublisher(busConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		publishers = append(publishers, bus)
		log.Info().Str("nats_url", natsURL).Str("stream", busConfig.StreamName).Msg("timer events mirrored to JetStream")
	}

	registry, err := timer.NewRegistry(config.Timers, clockwork.NewRealClock(), publishers)
	if err != nil {
		return nil, fmt.Errorf("failed to create timers: %w", err)
	}
	gatewayService.Attach(registry)

	store, db, err := setupRecordStore(ctx)
	if err != nil {
		registry.Close()
		return nil, err
	}

	return &Services{
		Registry: registry,
		Timers:   timer.NewService(registry),
		Gateway:  gatewayService,
		EventBus: bus,
		Rankings: rankings.NewHandler(rankings.NewApp(store)),
		db:       db,
	}, nil
}

// setupRecordStore picks the record backend from RECORD_STORE (postgres or memory)
func setupRecordStore(ctx context.Context) (records.Store, *sql.DB, error) {
	switch kind := getEnv("RECORD_STORE", "memory"); kind {
	case "memory":
		log.Info().Msg("using in-memory record store")
		return records.NewMemoryStore(clockwork.NewRealClock()), nil, nil
	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		db, err := dbCfg.Open(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store := records.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().
			Str("database", dbCfg.Database).
			Str("host", dbCfg.Host).
			Msg("using postgres record store")
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown RECORD_STORE %q", kind)
	}
}

// Run starts the background workers until ctx is done
func (s *Services) Run(ctx context.Context) {
	go s.Gateway.Start(ctx)
	if s.EventBus != nil {
		go s.EventBus.Run(ctx)
	}
}

// Close stops every engine and releases connections
func (s *Services) Close() {
	s.Registry.Close()
	if s.EventBus != nil {
		s.EventBus.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}
