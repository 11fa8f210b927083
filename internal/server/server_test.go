package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minebuddies/server/internal/items"
	"github.com/minebuddies/server/internal/lobby"
)

type stubConn struct {
	frames [][]byte
}

func (c *stubConn) Enqueue(frame []byte) error {
	c.frames = append(c.frames, frame)
	return nil
}

func TestDispatchDropsGarbageWithoutTeardown(t *testing.T) {
	logic := New(2, nil, nil)
	for _, frame := range []string{"", "x", "zzpayload", "31alice", "40junk"} {
		logic.Dispatch(1, []byte(frame))
	}
	// Nothing mutated and nothing crashed.
	assert.Equal(t, 0, logic.Lobbies().Count())
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	logic := New(2, nil, nil)
	c := &stubConn{}
	_, err := logic.Lobbies().Join("lobby1", lobby.Member{ClientID: 1, Username: "alice", Conn: c})
	require.NoError(t, err)

	logic.RemoveClient(1)
	assert.Equal(t, 0, logic.Lobbies().Count())
	logic.RemoveClient(1) // second teardown finds nothing
}

func TestClientIDsAreUniqueUnderConcurrency(t *testing.T) {
	logic := New(2, nil, nil)
	const n = 64
	ids := make(chan int, n)
	for i := 0; i < n; i++ {
		go func() { ids <- logic.nextClientID() }()
	}
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		id := <-ids
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
}

func TestJoinLobbyRequiresConnection(t *testing.T) {
	logic := New(2, nil, nil)
	_, err := logic.JoinLobby(99, "lobby1")
	assert.Error(t, err)
}

func TestSpawnEnvironmentItem(t *testing.T) {
	logic := New(2, nil, nil)
	c1, c2 := &stubConn{}, &stubConn{}
	lb, err := logic.Lobbies().Join("lobby1", lobby.Member{ClientID: 1, Username: "alice", Conn: c1})
	require.NoError(t, err)
	_, err = logic.Lobbies().Join("lobby1", lobby.Member{ClientID: 2, Username: "bob", Conn: c2})
	require.NoError(t, err)

	item := logic.SpawnEnvironmentItem(lb, items.Heart, items.Vec3{X: 2, Y: -3, Z: 0})
	assert.Equal(t, 0, item.Owner)
	assert.Equal(t, 1, lb.Items().Len())
	assert.Len(t, c1.frames, 1)
	assert.Len(t, c2.frames, 1)
}

func wsURL(srvURL, query string) string {
	return "ws" + strings.TrimPrefix(srvURL, "http") + "/ws" + query
}

// dialWS connects a real websocket client and waits until the server
// has registered it.
func dialWS(t *testing.T, logic *Logic, srvURL string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srvURL, "?username=alice"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return logic.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	return ws
}

func TestWebsocketUpgradeValidatesUsername(t *testing.T) {
	logic := New(2, nil, nil)
	srv := httptest.NewServer(logic.Routes())
	defer srv.Close()

	for _, query := range []string{"", "?username=ab", "?username=no-dashes"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, query), nil)
		require.Error(t, err, "query %q", query)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	assert.Equal(t, 0, logic.ClientCount())

	ws := dialWS(t, logic, srv.URL)
	defer ws.Close()
	assert.Equal(t, "alice", logic.Username(1))
}

func TestEnqueueAfterTeardownReportsError(t *testing.T) {
	logic := New(2, nil, nil)
	srv := httptest.NewServer(logic.Routes())
	defer srv.Close()

	ws := dialWS(t, logic, srv.URL)
	defer ws.Close()

	logic.mu.Lock()
	c := logic.conns[1]
	logic.mu.Unlock()
	require.NotNil(t, c)
	require.NoError(t, c.Enqueue([]byte("frame")))

	logic.RemoveClient(1)
	assert.Error(t, c.Enqueue([]byte("frame")))
	assert.Error(t, c.Enqueue([]byte("frame"))) // still an error, never a panic
}

func TestBroadcastSurvivesConcurrentTeardown(t *testing.T) {
	logic := New(2, nil, nil)
	srv := httptest.NewServer(logic.Routes())
	defer srv.Close()

	ws := dialWS(t, logic, srv.URL)
	defer ws.Close()

	logic.mu.Lock()
	c := logic.conns[1]
	logic.mu.Unlock()
	require.NotNil(t, c)

	// Hammer the send side from several goroutines while the connection
	// is torn down. Late sends must fail with an error, not crash the
	// process.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = c.Enqueue([]byte("frame"))
			}
		}()
	}
	logic.RemoveClient(1)
	wg.Wait()
}

func TestHealthEndpoint(t *testing.T) {
	logic := New(2, nil, nil)
	c := &stubConn{}
	_, err := logic.Lobbies().Join("lobby1", lobby.Member{ClientID: 1, Username: "alice", Conn: c})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	logic.Routes().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, 200, rr.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "disconnected", health["nats"])
	assert.Equal(t, float64(1), health["lobbies"])
}

func TestLobbyListingEndpoint(t *testing.T) {
	logic := New(2, nil, nil)
	c := &stubConn{}
	_, err := logic.Lobbies().Join("mine-7", lobby.Member{ClientID: 1, Username: "alice", Conn: c})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	logic.Routes().ServeHTTP(rr, httptest.NewRequest("GET", "/api/lobbies", nil))
	require.Equal(t, 200, rr.Code)

	var body struct {
		Lobbies []lobby.Info `json:"lobbies"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Lobbies, 1)
	assert.Equal(t, "mine-7", body.Lobbies[0].ID)
	assert.Equal(t, "not_started", body.Lobbies[0].State)
}
