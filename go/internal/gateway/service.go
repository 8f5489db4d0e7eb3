package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/arena/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Service is the timer gateway: REST actions plus the WebSocket push hub
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates the gateway. The registry is attached later with
// Attach because the engines need the hub as their publisher.
func NewService(config Config) *Service {
	return &Service{
		connectionManager: NewConnectionManager(config.ConnectionConfig),
	}
}

// Attach wires the handlers to the timer engines
func (s *Service) Attach(provider StateProvider) {
	s.wsHandler = NewWebSocketHandler(s.connectionManager, provider)
	s.stateHandler = NewStateHandler(provider)
}

// Publisher returns the hub so engines can push events to overlays
func (s *Service) Publisher() timer.Publisher {
	return s.connectionManager
}

// Start runs the broadcast loop until ctx is done
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting timer gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("timer gateway service stopped")
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("timer gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "timer_gateway"
	return stats
}
