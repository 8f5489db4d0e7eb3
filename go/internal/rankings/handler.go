package rankings

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// StandingsResponse is the body of GET /api/rankings
type StandingsResponse struct {
	EventID  string    `json:"event_id,omitempty"`
	Rankings []Ranking `json:"rankings"`
}

// Handler serves the qualifying standings over HTTP
type Handler struct {
	app *App
}

// NewHandler creates a rankings handler
func NewHandler(app *App) *Handler {
	return &Handler{app: app}
}

// HandleStandings handles GET /api/rankings?event_id=
func (h *Handler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("event_id")

	standings, err := h.app.Standings(r.Context(), eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to compute standings")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to compute standings", "code": "internal"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(StandingsResponse{EventID: eventID, Rankings: standings}); err != nil {
		log.Error().Err(err).Msg("failed to encode standings response")
	}
}

// RegisterRoutes registers the rankings routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rankings", h.HandleStandings)
}
