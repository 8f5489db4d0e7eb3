package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/arena/go/internal/timer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timers:
  - name: match
    tick_interval: 50ms
    countdown_step: 1s
  - name: pit
    tick_interval: 200ms
`), 0o600))

	config, err := loadConfig(path)
	require.NoError(t, err)
	require.Len(t, config.Timers, 2)
	assert.Equal(t, timer.Config{Name: "match", TickInterval: 50 * time.Millisecond, CountdownStep: time.Second}, config.Timers[0])
	assert.Equal(t, "pit", config.Timers[1].Name)
	assert.Equal(t, 200*time.Millisecond, config.Timers[1].TickInterval)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, timer.DefaultConfigs(), config.Timers)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("timers: []\n"), 0o600))
	config, err = loadConfig(empty)
	require.NoError(t, err)
	assert.Equal(t, timer.DefaultConfigs(), config.Timers)

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("timers: [\n"), 0o600))
	_, err = loadConfig(broken)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("loud"))
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("ARENA_TEST_INT", "42")
	assert.Equal(t, 42, getEnvAsInt("ARENA_TEST_INT", 7))
	t.Setenv("ARENA_TEST_INT", "forty-two")
	assert.Equal(t, 7, getEnvAsInt("ARENA_TEST_INT", 7))
}

func TestServerRoutes(t *testing.T) {
	t.Setenv("NATS_URL", "")
	t.Setenv("RECORD_STORE", "memory")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	services, err := setupServices(ctx, &Config{Timers: timer.DefaultConfigs()})
	require.NoError(t, err)
	t.Cleanup(services.Close)
	assert.Nil(t, services.EventBus)
	services.Run(ctx)

	srv := httptest.NewServer(newHandler(services))
	t.Cleanup(srv.Close)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/timers", http.StatusOK},
		{http.MethodGet, "/api/timers/event/status", http.StatusOK},
		{http.MethodPost, "/api/timers/match/start?duration=120", http.StatusOK},
		{http.MethodGet, "/api/rankings", http.StatusOK},
		{http.MethodGet, "/ws/stats", http.StatusOK},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, "%s %s", tt.method, tt.path)
	}

	match, err := services.Registry.Get(timer.MatchTimer)
	require.NoError(t, err)
	assert.Equal(t, timer.PhaseRunning, match.Snapshot().Phase)
}

func TestServerCORS(t *testing.T) {
	t.Setenv("NATS_URL", "")
	t.Setenv("RECORD_STORE", "memory")

	services, err := setupServices(context.Background(), &Config{Timers: timer.DefaultConfigs()})
	require.NoError(t, err)
	t.Cleanup(services.Close)

	req := httptest.NewRequest(http.MethodOptions, "/api/timers/match/pause", nil)
	req.Header.Set("Origin", "http://overlay.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	newHandler(services).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRecordStore(t *testing.T) {
	t.Setenv("RECORD_STORE", "mongo")
	_, _, err := setupRecordStore(context.Background())
	assert.Error(t, err)
}
