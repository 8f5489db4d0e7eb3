package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mcdev12/arena/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// StateProvider gives the HTTP layer access to the timer engines
type StateProvider interface {
	Get(name string) (*timer.Engine, error)
	Snapshots() []timer.Snapshot
}

// Verify that the registry satisfies StateProvider
var _ StateProvider = (*timer.Registry)(nil)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// TimersResponse lists every configured timer
type TimersResponse struct {
	Timers []timer.Snapshot `json:"timers"`
}

// StateHandler handles HTTP requests for timer state and actions
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleListTimers handles GET /api/timers
func (h *StateHandler) HandleListTimers(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, TimersResponse{Timers: h.stateProvider.Snapshots()})
}

// HandleStatus handles GET /api/timers/{name}/status
func (h *StateHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

// HandleStart handles POST /api/timers/{name}/start?duration=30&countdown=true
func (h *StateHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	seconds, err := strconv.ParseFloat(r.URL.Query().Get("duration"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "duration must be a number of seconds")
		return
	}
	countdown, ok := boolParam(w, r, "countdown")
	if !ok {
		return
	}

	duration, err := timer.Seconds(seconds)
	if err != nil {
		h.respond(w, engine.Name(), "start", timer.Snapshot{}, err)
		return
	}
	snap, err := engine.Start(duration, countdown)
	h.respond(w, engine.Name(), "start", snap, err)
}

// HandlePause handles POST /api/timers/{name}/pause
func (h *StateHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	snap, err := engine.Pause()
	h.respond(w, engine.Name(), "pause", snap, err)
}

// HandleResume handles POST /api/timers/{name}/resume?countdown=false
func (h *StateHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	countdown, ok := boolParam(w, r, "countdown")
	if !ok {
		return
	}
	snap, err := engine.Resume(countdown)
	h.respond(w, engine.Name(), "resume", snap, err)
}

// HandleRestart handles POST /api/timers/{name}/restart
func (h *StateHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respond(w, engine.Name(), "restart", engine.Restart(), nil)
}

// HandleRemoveTime handles POST /api/timers/{name}/remove?seconds=5
func (h *StateHandler) HandleRemoveTime(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	seconds, err := strconv.ParseFloat(r.URL.Query().Get("seconds"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "seconds must be a number")
		return
	}
	amount, err := timer.Seconds(seconds)
	if err != nil {
		h.respond(w, engine.Name(), "remove", timer.Snapshot{}, err)
		return
	}
	snap, err := engine.RemoveTime(amount)
	h.respond(w, engine.Name(), "remove", snap, err)
}

// RegisterStateRoutes registers timer routes. Methods are checked in the
// handlers so that a wrong method still gets a JSON error body.
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/timers", h.HandleListTimers)
	mux.HandleFunc("/api/timers/{name}/status", h.HandleStatus)
	mux.HandleFunc("/api/timers/{name}/start", h.HandleStart)
	mux.HandleFunc("/api/timers/{name}/pause", h.HandlePause)
	mux.HandleFunc("/api/timers/{name}/resume", h.HandleResume)
	mux.HandleFunc("/api/timers/{name}/restart", h.HandleRestart)
	mux.HandleFunc("/api/timers/{name}/remove", h.HandleRemoveTime)
}

func (h *StateHandler) engine(w http.ResponseWriter, r *http.Request) (*timer.Engine, bool) {
	engine, err := h.stateProvider.Get(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_timer", err.Error())
		return nil, false
	}
	return engine, true
}

func (h *StateHandler) respond(w http.ResponseWriter, name, action string, snap timer.Snapshot, err error) {
	if err != nil {
		status, code := statusFor(err)
		log.Debug().
			Err(err).
			Str("timer", name).
			Str("action", action).
			Msg("timer action rejected")
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// statusFor maps timer errors onto HTTP statuses and stable error codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, timer.ErrInvalidDuration):
		return http.StatusBadRequest, "invalid_duration"
	case errors.Is(err, timer.ErrNotRunning):
		return http.StatusConflict, "not_running"
	case errors.Is(err, timer.ErrNothingToResume):
		return http.StatusConflict, "nothing_to_resume"
	case errors.Is(err, timer.ErrUnknownTimer):
		return http.StatusNotFound, "unknown_timer"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	return false
}

func boolParam(w http.ResponseWriter, r *http.Request, key string) (bool, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", key+" must be true or false")
		return false, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
