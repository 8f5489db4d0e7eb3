package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/arena/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGateway struct {
	server   *httptest.Server
	service  *Service
	registry *timer.Registry
	clock    *clockwork.FakeClock
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	clock := clockwork.NewFakeClock()
	svc := NewService(DefaultConfig())

	registry, err := timer.NewRegistry(timer.DefaultConfigs(), clock, svc.Publisher())
	require.NoError(t, err)
	t.Cleanup(registry.Close)
	svc.Attach(registry)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testGateway{server: server, service: svc, registry: registry, clock: clock}
}

func (g *testGateway) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, g.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := g.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func decodeSnapshot(t *testing.T, body []byte) timer.Snapshot {
	t.Helper()
	var snap timer.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestListTimers(t *testing.T) {
	g := newTestGateway(t)

	resp, body := g.do(t, http.MethodGet, "/api/timers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var list TimersResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Timers, 2)
	assert.Equal(t, timer.EventTimer, list.Timers[0].Timer)
	assert.Equal(t, timer.MatchTimer, list.Timers[1].Timer)
}

func TestTimerActions(t *testing.T) {
	g := newTestGateway(t)

	resp, body := g.do(t, http.MethodPost, "/api/timers/match/start?duration=30&countdown=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, body)
	assert.Equal(t, timer.PhasePreCountdown, snap.Phase)
	require.NotNil(t, snap.CountdownText)
	assert.Equal(t, "3", *snap.CountdownText)
	assert.Equal(t, "0:30.0", snap.Display)

	resp, body = g.do(t, http.MethodPost, "/api/timers/match/pause")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, timer.PhasePaused, decodeSnapshot(t, body).Phase)

	resp, body = g.do(t, http.MethodPost, "/api/timers/match/remove?seconds=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 20.0, decodeSnapshot(t, body).TimeLeftSeconds)

	resp, body = g.do(t, http.MethodPost, "/api/timers/match/resume?countdown=false")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, body)
	assert.Equal(t, timer.PhaseRunning, snap.Phase)
	assert.True(t, snap.IsRunning)

	resp, body = g.do(t, http.MethodGet, "/api/timers/match/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, timer.PhaseRunning, decodeSnapshot(t, body).Phase)

	resp, body = g.do(t, http.MethodPost, "/api/timers/match/restart")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, body)
	assert.Equal(t, timer.PhaseIdle, snap.Phase)
	assert.Zero(t, snap.TimeLeftSeconds)

	// The event timer was never touched
	resp, body = g.do(t, http.MethodGet, "/api/timers/event/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, timer.PhaseIdle, decodeSnapshot(t, body).Phase)
}

func TestTimerActionsBeyondDurationRange(t *testing.T) {
	g := newTestGateway(t)

	resp, body := g.do(t, http.MethodPost, "/api/timers/match/start?duration=1e10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, timer.PhaseRunning, decodeSnapshot(t, body).Phase)

	resp, body = g.do(t, http.MethodPost, "/api/timers/match/remove?seconds=1e12")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, body)
	assert.Equal(t, timer.PhaseFinished, snap.Phase)
	assert.Zero(t, snap.TimeLeftSeconds)
}

func TestTimerActionErrors(t *testing.T) {
	g := newTestGateway(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{"zero duration", http.MethodPost, "/api/timers/match/start?duration=0", http.StatusBadRequest, "invalid_duration"},
		{"missing duration", http.MethodPost, "/api/timers/match/start", http.StatusBadRequest, "bad_request"},
		{"bad countdown flag", http.MethodPost, "/api/timers/match/start?duration=5&countdown=maybe", http.StatusBadRequest, "bad_request"},
		{"pause idle", http.MethodPost, "/api/timers/match/pause", http.StatusConflict, "not_running"},
		{"resume idle", http.MethodPost, "/api/timers/match/resume", http.StatusConflict, "nothing_to_resume"},
		{"negative remove", http.MethodPost, "/api/timers/match/remove?seconds=-2", http.StatusBadRequest, "invalid_duration"},
		{"NaN duration", http.MethodPost, "/api/timers/match/start?duration=NaN", http.StatusBadRequest, "invalid_duration"},
		{"infinite duration", http.MethodPost, "/api/timers/match/start?duration=Inf", http.StatusBadRequest, "invalid_duration"},
		{"infinite remove", http.MethodPost, "/api/timers/match/remove?seconds=Inf", http.StatusBadRequest, "invalid_duration"},
		{"unknown timer", http.MethodGet, "/api/timers/pit/status", http.StatusNotFound, "unknown_timer"},
		{"wrong method", http.MethodGet, "/api/timers/match/start?duration=5", http.StatusMethodNotAllowed, "method_not_allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := g.do(t, tt.method, tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			e := decodeError(t, body)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func dial(t *testing.T, g *testGateway, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/timers" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) TimerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg TimerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketPushesTimerEvents(t *testing.T) {
	g := newTestGateway(t)
	conn := dial(t, g, "?timer=match")

	sync := readMessage(t, conn)
	assert.Equal(t, MessageTypeSync, sync.Type)
	assert.Equal(t, timer.MatchTimer, sync.Timer)
	assert.Equal(t, timer.PhaseIdle, sync.Data.Phase)

	require.Eventually(t, func() bool {
		stats := g.service.GetStats()
		return stats["total_connections"] == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Events for other timers are not delivered to this subscriber
	resp, _ := g.do(t, http.MethodPost, "/api/timers/event/start?duration=60")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = g.do(t, http.MethodPost, "/api/timers/match/start?duration=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	started := readMessage(t, conn)
	assert.Equal(t, timer.EventTypeStarted, started.Type)
	assert.Equal(t, timer.MatchTimer, started.Timer)
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, timer.PhaseRunning, started.Data.Phase)
	assert.Equal(t, 5.0, started.Data.TimeLeftSeconds)

	g.clock.Advance(100 * time.Millisecond)
	tick := readMessage(t, conn)
	assert.Equal(t, timer.EventTypeTick, tick.Type)
	assert.InDelta(t, 4.9, tick.Data.TimeLeftSeconds, 0.001)
}

func TestWebSocketDefaultsToMatchAndRejectsUnknown(t *testing.T) {
	g := newTestGateway(t)

	conn := dial(t, g, "")
	assert.Equal(t, timer.MatchTimer, readMessage(t, conn).Timer)

	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/timers?timer=pit"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// serverConn returns the server side of a live WebSocket with no pumps attached
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			conns <- c
		}
	}))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { client.Close() })

	select {
	case c := <-conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil
	}
}

func TestSlowConnectionIsDropped(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conn := &Connection{ID: "slow", Timer: timer.MatchTimer, Conn: serverConn(t), Send: make(chan []byte, 1), Manager: cm}
	cm.registerConnection(conn)

	msg := &TimerMessage{Timer: timer.MatchTimer, Type: timer.EventTypeTick}
	cm.handleBroadcast(BroadcastMessage{Timer: timer.MatchTimer, Message: msg})
	assert.Equal(t, 1, cm.GetConnectionStats()["total_connections"])

	// Nobody drains Send, so the second broadcast overflows the buffer
	cm.handleBroadcast(BroadcastMessage{Timer: timer.MatchTimer, Message: msg})
	assert.Equal(t, 0, cm.GetConnectionStats()["total_connections"])

	_, open := <-conn.Send
	assert.True(t, open, "buffered message is still readable")
	_, open = <-conn.Send
	assert.False(t, open, "send channel is closed once dropped")

	// Unregistering twice is harmless
	cm.unregisterConnection(conn)
}
