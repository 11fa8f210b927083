package packet

import (
	"time"

	"github.com/minebuddies/server/internal/items"
	"github.com/minebuddies/server/internal/lobby"
	"github.com/minebuddies/server/internal/logger"
)

// ServerEnv is what server-side packet processing may touch. It is
// implemented by server.Logic; tests provide their own.
type ServerEnv interface {
	Username(clientID int) string
	SetUsername(clientID int, name string)

	// JoinLobby places the client into the named lobby, creating it on
	// first join. A client may be in at most one lobby.
	JoinLobby(clientID int, lobbyID string) (*lobby.Lobby, error)
	LobbyFor(clientID int) *lobby.Lobby

	// Broadcast encodes p once and fans it out to the lobby members in
	// join order, skipping the given client ids.
	Broadcast(l *lobby.Lobby, p Packet, skip ...int)
	SendTo(clientID int, p Packet) error
	RemoveClient(clientID int)

	MinPlayers() int

	// Game-event hooks, published to the event stream when configured.
	PublishRoundStarted(l *lobby.Lobby)
	PublishRoundEnded(l *lobby.Lobby, winner string, elapsed time.Duration)
	PublishItemSpawned(l *lobby.Lobby, item *items.Item)

	Log() *logger.Logger
}

// ClientEnv is what client-side packet processing may touch. It is
// implemented by client.Logic.
type ClientEnv interface {
	ClientID() int
	// AdoptClientID records the server-assigned id after login.
	AdoptClientID(id int)
	Username() string

	Players() PlayerSink
	Positions() PositionSink
	World() ItemSink
	Rounds() RoundSink

	Log() *logger.Logger
}

// The sinks below are the external collaborators of the protocol core:
// rendering, entities and game stages consume decoded payloads through
// them and contain no protocol logic themselves.

type PlayerSink interface {
	PlayerJoined(clientID int, username string)
	PlayerLeft(clientID int)
}

type PositionSink interface {
	SetPosition(clientID int, x, y, rot float32)
	Moved(clientID int, dx, dy float32)
}

// RemoteItem is a decoded item spawn as seen by a client.
type RemoteItem struct {
	ID    int
	Owner int
	Type  items.ItemType
	Pos   items.Vec3
	// Owned is set when this client spawned the item. Active marks a
	// hazard that is already ticking on arrival.
	Owned  bool
	Active bool
}

type ItemSink interface {
	ItemSpawned(item RemoteItem)
	ItemRemoved(itemID int)
}

type RoundSink interface {
	RoundStarted(startedAt time.Time)
	GameOver(winner string, elapsed time.Duration)
}
