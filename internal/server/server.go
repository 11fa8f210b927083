// Package server owns the live connections, the client id allocator and
// lobby membership routing, and dispatches decoded packets into their
// server-side processing.
package server

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/minebuddies/server/internal/items"
	"github.com/minebuddies/server/internal/lobby"
	"github.com/minebuddies/server/internal/logger"
	"github.com/minebuddies/server/internal/packet"
)

// Logic is the server side of the protocol. It implements
// packet.ServerEnv. Each shared structure has exactly one serialization
// point: idMu for the id allocator, mu for the connection table, and
// each lobby's own mutex for its membership and round state.
type Logic struct {
	log        *logger.Logger
	minPlayers int

	idMu   sync.Mutex
	nextID int

	mu    sync.Mutex
	conns map[int]*conn
	names map[int]string

	lobbies *lobby.Manager

	nc *nats.Conn
	js nats.JetStreamContext
}

// New creates the server logic. nc and js may be nil; the server then
// runs without event publishing.
func New(minPlayers int, nc *nats.Conn, js nats.JetStreamContext) *Logic {
	return &Logic{
		log:        logger.New("server"),
		minPlayers: minPlayers,
		conns:      make(map[int]*conn),
		names:      make(map[int]string),
		lobbies:    lobby.NewManager(),
		nc:         nc,
		js:         js,
	}
}

// nextClientID hands out ids under their own mutex so concurrent
// accepts can never produce duplicates. Ids start at 1 and are never
// reused within a process lifetime; 0 stays reserved for the server.
func (l *Logic) nextClientID() int {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	l.nextID++
	return l.nextID
}

// Dispatch decodes one inbound frame from a client and, only if it
// validates cleanly, runs its server-side processing. Invalid frames
// are logged with their error list and dropped; the connection stays
// up. Consistency errors discovered during processing are handled the
// same way.
func (l *Logic) Dispatch(clientID int, frame []byte) {
	p := packet.Decode(frame)
	p.Validate()
	if p.HasErrors() {
		l.log.Warnf("dropping %s from client %d: %s", p.ID(), clientID, packet.ErrorMessage(p))
		return
	}
	p.ProcessServer(l, clientID)
	if p.HasErrors() {
		l.log.Warnf("rejected %s from client %d: %s", p.ID(), clientID, packet.ErrorMessage(p))
	}
}

// RemoveClient releases a client's connection and lobby membership,
// deleting the lobby once empty. Safe to call twice; the second call
// finds nothing left to tear down.
func (l *Logic) RemoveClient(clientID int) {
	l.mu.Lock()
	c, ok := l.conns[clientID]
	delete(l.conns, clientID)
	delete(l.names, clientID)
	l.mu.Unlock()

	l.lobbies.Leave(clientID)
	if ok {
		c.close()
		l.log.Infof("client %d removed", clientID)
	}
}

// dropClient is the teardown path for transport loss and explicit
// disconnects: it remembers the lobby first so the remaining members
// can be told who left.
func (l *Logic) dropClient(clientID int) {
	lb := l.lobbies.LobbyFor(clientID)
	l.RemoveClient(clientID)
	if lb != nil && !lb.Empty() {
		l.Broadcast(lb, packet.NewDisconnectNotice(clientID))
	}
}

// packet.ServerEnv implementation.

func (l *Logic) Username(clientID int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.names[clientID]
}

func (l *Logic) SetUsername(clientID int, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names[clientID] = name
}

func (l *Logic) JoinLobby(clientID int, lobbyID string) (*lobby.Lobby, error) {
	l.mu.Lock()
	c := l.conns[clientID]
	name := l.names[clientID]
	l.mu.Unlock()
	if c == nil {
		return nil, fmt.Errorf("client %d has no connection", clientID)
	}
	return l.lobbies.Join(lobbyID, lobby.Member{ClientID: clientID, Username: name, Conn: c})
}

func (l *Logic) LobbyFor(clientID int) *lobby.Lobby {
	return l.lobbies.LobbyFor(clientID)
}

// Broadcast serializes the packet once and fans it out to the lobby in
// join order. Per-member failures are isolated inside lobby.Broadcast.
func (l *Logic) Broadcast(lb *lobby.Lobby, p packet.Packet, skip ...int) {
	lb.Broadcast(packet.Encode(p), skip...)
}

func (l *Logic) SendTo(clientID int, p packet.Packet) error {
	l.mu.Lock()
	c := l.conns[clientID]
	l.mu.Unlock()
	if c == nil {
		return fmt.Errorf("client %d has no connection", clientID)
	}
	return c.Enqueue(packet.Encode(p))
}

func (l *Logic) MinPlayers() int { return l.minPlayers }

func (l *Logic) Log() *logger.Logger { return l.log }

// SpawnEnvironmentItem spawns a server-initiated item with no owning
// client and announces it to the lobby.
func (l *Logic) SpawnEnvironmentItem(lb *lobby.Lobby, typ items.ItemType, pos items.Vec3) *items.Item {
	item := lb.Items().Spawn(0, typ, pos)
	l.Broadcast(lb, packet.NewSpawnBroadcast(item))
	l.PublishItemSpawned(lb, item)
	return item
}

// Lobbies exposes the lobby manager for the HTTP surface and tests.
func (l *Logic) Lobbies() *lobby.Manager { return l.lobbies }

// ClientCount reports the number of live connections.
func (l *Logic) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// NatsConnected reports the event stream connection state.
func (l *Logic) NatsConnected() bool {
	return l.nc != nil && l.nc.Status() == nats.CONNECTED
}

var _ packet.ServerEnv = (*Logic)(nil)
