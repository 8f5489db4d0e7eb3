package gateway

import (
	"net/http"

	"github.com/mcdev12/arena/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for timer overlays
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stateProvider     StateProvider
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, provider StateProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stateProvider:     provider,
	}
}

// HandleTimerConnection handles GET /ws/timers?timer=match
func (h *WebSocketHandler) HandleTimerConnection(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("timer")
	if name == "" {
		name = timer.MatchTimer
	}

	engine, err := h.stateProvider.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_timer", err.Error())
		return
	}

	// The current snapshot goes out first so overlays render before the next tick
	if err := h.connectionManager.UpgradeConnection(w, r, name, syncMessage(engine.Snapshot())); err != nil {
		// Upgrade has already written an HTTP error to the client
		log.Error().
			Err(err).
			Str("timer", name).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/timers", h.HandleTimerConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
