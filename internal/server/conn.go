package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minebuddies/server/internal/packet"
)

const (
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingPeriod    = (readDeadline * 9) / 10 // must be less than readDeadline
	maxFrameSize  = 512
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the launcher domain is fixed
		return true
	},
}

// conn is the send side of one client connection. Enqueue never blocks:
// a full queue reports an error so a stalled member cannot hold up a
// lobby broadcast. The send channel is never closed; teardown closes
// done instead, so a broadcast racing a teardown gets an error rather
// than a send on a closed channel.
type conn struct {
	id   int
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *conn) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection for client %d is closed", c.id)
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("send queue full for client %d", c.id)
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// ServeWS validates the username query parameter, upgrades the HTTP
// connection, assigns the next client id and starts the per-connection
// pumps. The client is not yet in a lobby; that happens when its LOGIN
// packet arrives.
func (l *Logic) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	if !packet.ValidUsername(username) {
		http.Error(w, "invalid username: must be 3-20 characters, alphanumeric and underscore only", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Errorf("websocket upgrade error: %v", err)
		return
	}

	clientID := l.nextClientID()
	c := &conn{
		id:   clientID,
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	l.SetUsername(clientID, username)

	l.mu.Lock()
	l.conns[clientID] = c
	l.mu.Unlock()
	l.log.Infof("client %d connected from %s", clientID, r.RemoteAddr)

	go l.writePump(c)
	go l.readPump(c)
}

// readPump reads frames in arrival order and hands each to Dispatch.
// Any read error is a transport failure for this connection only and
// triggers its teardown.
func (l *Logic) readPump(c *conn) {
	defer l.dropClient(c.id)

	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l.log.Errorf("websocket error for client %d: %v", c.id, err)
			}
			return
		}
		l.Dispatch(c.id, frame)
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings.
func (l *Logic) writePump(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
