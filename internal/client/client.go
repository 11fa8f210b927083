// Package client maintains one connection to the game server, decodes
// inbound frames into packets and runs their client-side processing.
// Rendering, entities and game stages plug in through the packet sinks;
// the package itself contains no presentation logic.
package client

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minebuddies/server/internal/logger"
	"github.com/minebuddies/server/internal/packet"
)

const writeDeadline = 10 * time.Second

// Logic is the client side of the protocol. It implements
// packet.ClientEnv. The zero client id means "not logged in yet"; the
// server-assigned id is adopted from the login echo.
type Logic struct {
	log      *logger.Logger
	username string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	clientID int

	players   packet.PlayerSink
	positions packet.PositionSink
	world     packet.ItemSink
	rounds    packet.RoundSink
}

type Option func(*Logic)

func WithPlayerSink(s packet.PlayerSink) Option     { return func(l *Logic) { l.players = s } }
func WithPositionSink(s packet.PositionSink) Option { return func(l *Logic) { l.positions = s } }
func WithItemSink(s packet.ItemSink) Option         { return func(l *Logic) { l.world = s } }
func WithRoundSink(s packet.RoundSink) Option       { return func(l *Logic) { l.rounds = s } }

// New builds the client logic without a connection, which is how tests
// drive HandleFrame directly. Sinks default to no-ops.
func New(username string, opts ...Option) *Logic {
	l := &Logic{
		log:       logger.New("client"),
		username:  username,
		players:   nopSinks{},
		positions: nopSinks{},
		world:     nopSinks{},
		rounds:    nopSinks{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dial connects to the server's websocket endpoint. The username rides
// along as a query parameter; the server rejects the upgrade when it is
// missing or malformed.
func Dial(rawURL, username string, opts ...Option) (*Logic, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("username", username)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	l := New(username, opts...)
	l.conn = conn
	return l, nil
}

// Login announces this client to the named lobby.
func (l *Logic) Login(lobbyID string) error {
	p, err := packet.NewLogin(l.username, lobbyID)
	if err != nil {
		return err
	}
	return l.Send(p)
}

// Send encodes and writes one packet, fire-and-forget: there is no
// request/response matching, correlation is by packet type only.
func (l *Logic) Send(p packet.Packet) error {
	if l.conn == nil {
		return fmt.Errorf("not connected")
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return l.conn.WriteMessage(websocket.TextMessage, packet.Encode(p))
}

// Run reads frames until the connection drops. A dropped connection is
// terminal for this core; reconnection is the caller's concern.
func (l *Logic) Run() error {
	if l.conn == nil {
		return fmt.Errorf("not connected")
	}
	for {
		_, frame, err := l.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		l.HandleFrame(frame)
	}
}

// HandleFrame decodes, validates and, only if error-free, processes one
// inbound frame. Invalid frames are logged and dropped, same fail-closed
// rule as the server.
func (l *Logic) HandleFrame(frame []byte) {
	p := packet.Decode(frame)
	p.Validate()
	if p.HasErrors() {
		l.log.Warnf("dropping %s: %s", p.ID(), packet.ErrorMessage(p))
		return
	}
	p.ProcessClient(l)
	if p.HasErrors() {
		l.log.Warnf("rejected %s: %s", p.ID(), packet.ErrorMessage(p))
	}
}

// Close says goodbye and tears the connection down.
func (l *Logic) Close() error {
	if l.conn == nil {
		return nil
	}
	_ = l.Send(packet.NewDisconnect())
	return l.conn.Close()
}

// packet.ClientEnv implementation.

func (l *Logic) ClientID() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clientID
}

func (l *Logic) AdoptClientID(id int) {
	l.mu.Lock()
	l.clientID = id
	l.mu.Unlock()
	l.log.Infof("assigned client id %d", id)
}

func (l *Logic) Username() string { return l.username }

func (l *Logic) Players() packet.PlayerSink     { return l.players }
func (l *Logic) Positions() packet.PositionSink { return l.positions }
func (l *Logic) World() packet.ItemSink         { return l.world }
func (l *Logic) Rounds() packet.RoundSink       { return l.rounds }

func (l *Logic) Log() *logger.Logger { return l.log }

var _ packet.ClientEnv = (*Logic)(nil)

// FormatElapsed renders a round duration as mm:ss for end-of-game
// summaries.
func FormatElapsed(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// nopSinks is the default collaborator: a headless client that ignores
// every decoded payload.
type nopSinks struct{}

func (nopSinks) PlayerJoined(int, string)            {}
func (nopSinks) PlayerLeft(int)                      {}
func (nopSinks) SetPosition(int, float32, float32, float32) {}
func (nopSinks) Moved(int, float32, float32)         {}
func (nopSinks) ItemSpawned(packet.RemoteItem)       {}
func (nopSinks) ItemRemoved(int)                     {}
func (nopSinks) RoundStarted(time.Time)              {}
func (nopSinks) GameOver(string, time.Duration)      {}
