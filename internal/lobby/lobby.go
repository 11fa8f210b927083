// Package lobby groups connected clients into game sessions sharing one
// round and its authoritative item state.
package lobby

import (
	"errors"
	"sync"
	"time"

	"github.com/minebuddies/server/internal/items"
	"github.com/minebuddies/server/internal/logger"
)

// State is the round lifecycle. Transitions are monotonic:
// NotStarted -> InProgress -> Ended, with Ended terminal.
type State int

const (
	NotStarted State = iota
	InProgress
	Ended
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrNotEnoughPlayers = errors.New("not enough players to start a round")
	ErrRoundNotRunning  = errors.New("round is not in progress")
	ErrRoundOver        = errors.New("round has already ended")
)

// Conn is the send side of a member connection. Enqueue must not block;
// a full or closed connection reports an error instead.
type Conn interface {
	Enqueue(frame []byte) error
}

// Member is one connected client inside a lobby.
type Member struct {
	ClientID int
	Username string
	Conn     Conn
}

// Lobby owns the membership list, the round state machine and the
// per-session item registry. The mutex is the single serialization point
// for all of them; it is never held across a network write.
type Lobby struct {
	mu        sync.Mutex
	id        string
	members   []Member // insertion order = join order = broadcast order
	state     State
	startedAt time.Time
	items     *items.Registry
	log       *logger.Logger
}

// New creates a lobby drawing item ids from the given sequence, which
// the manager shares across all lobbies to keep ids process-unique.
func New(id string, ids *items.Sequence) *Lobby {
	return &Lobby{
		id:    id,
		items: items.NewRegistry(ids),
		log:   logger.New("lobby").WithField("lobby", id),
	}
}

func (l *Lobby) ID() string { return l.id }

// Items exposes the session's authoritative item registry.
func (l *Lobby) Items() *items.Registry { return l.items }

func (l *Lobby) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lobby) StartedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startedAt
}

// Join appends a member in arrival order. Joining twice is a no-op.
func (l *Lobby) Join(m Member) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.members {
		if existing.ClientID == m.ClientID {
			return
		}
	}
	l.members = append(l.members, m)
}

// Leave removes a member. Reports whether the client was present.
func (l *Lobby) Leave(clientID int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, m := range l.members {
		if m.ClientID == clientID {
			l.members = append(l.members[:i], l.members[i+1:]...)
			return true
		}
	}
	return false
}

// Members returns a snapshot of the membership in join order.
func (l *Lobby) Members() []Member {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Member, len(l.members))
	copy(out, l.members)
	return out
}

func (l *Lobby) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.members)
}

func (l *Lobby) Empty() bool { return l.Size() == 0 }

// StartRound moves NotStarted -> InProgress once minPlayers is met.
// A repeat start while the round runs is accepted but changes nothing
// (started=false, err=nil); starting an ended lobby is an error.
func (l *Lobby) StartRound(minPlayers int) (started bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case InProgress:
		return false, nil
	case Ended:
		return false, ErrRoundOver
	}
	if len(l.members) < minPlayers {
		return false, ErrNotEnoughPlayers
	}
	l.state = InProgress
	l.startedAt = time.Now()
	return true, nil
}

// EndRound moves InProgress -> Ended. Ending a round that never started
// is an error: there is no NotStarted -> Ended shortcut.
func (l *Lobby) EndRound() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != InProgress {
		return ErrRoundNotRunning
	}
	l.state = Ended
	return nil
}

// AcceptsGameplay reports whether gameplay packets should still take
// effect. After the round ends they validate but no longer process.
func (l *Lobby) AcceptsGameplay() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state != Ended
}

// Broadcast writes one already-encoded frame to every member in join
// order, skipping the client ids in skip. A failure on one member is
// logged and does not abort delivery to the rest.
func (l *Lobby) Broadcast(frame []byte, skip ...int) {
	for _, m := range l.Members() {
		skipped := false
		for _, id := range skip {
			if m.ClientID == id {
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}
		if err := m.Conn.Enqueue(frame); err != nil {
			l.log.Warnf("broadcast to client %d failed: %v", m.ClientID, err)
		}
	}
}
