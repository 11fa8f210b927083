package packet

import (
	"errors"
	"strconv"
	"time"

	"github.com/minebuddies/server/internal/lobby"
)

// Spawn slot layout at round start: members are placed on the surface
// row, spaced along the x axis in join order.
const (
	spawnSpacing = 6.0
	spawnSurface = 0.0
)

// StartRound asks the server to begin the lobby's round (empty payload)
// or, as the server broadcast, announces the round start timestamp in
// unix milliseconds.
type StartRound struct {
	base
	StartedAt time.Time
}

// NewStartRound builds the client-side round start request.
func NewStartRound() *StartRound {
	return &StartRound{base: newBase(TypeStartRound, "")}
}

func newRoundStarted(startedAt time.Time) *StartRound {
	return &StartRound{
		base:      newBase(TypeStartRound, strconv.FormatInt(startedAt.UnixMilli(), 10)),
		StartedAt: startedAt,
	}
}

func (p *StartRound) Validate() {
	f := p.fields()
	if len(f) == 0 {
		return // the request form carries no data
	}
	if len(f) != 1 {
		p.addError("Invalid round start data.")
		return
	}
	ms, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		p.addError("Invalid round start timestamp.")
		return
	}
	p.StartedAt = time.UnixMilli(ms)
}

// ProcessServer starts the round once the lobby has enough members,
// assigns each member its spawn position via a targeted position
// packet, and broadcasts the start timestamp. A repeat request while
// the round runs is accepted but changes nothing.
func (p *StartRound) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	l := env.LobbyFor(clientID)
	if l == nil {
		p.addError("Client is not in a lobby.")
		return
	}
	started, err := l.StartRound(env.MinPlayers())
	if err != nil {
		switch {
		case errors.Is(err, lobby.ErrNotEnoughPlayers):
			p.addError("Not enough players to start the round.")
		case errors.Is(err, lobby.ErrRoundOver):
			p.addError("Round has already ended.")
		default:
			p.addError("Round could not be started.")
		}
		return
	}
	if !started {
		env.Log().Debugf("client %d requested round start for lobby %s; already running", clientID, l.ID())
		return
	}
	for i, m := range l.Members() {
		spawn := NewPositionUpdate(m.ClientID, float32(i)*spawnSpacing, spawnSurface, 0)
		if err := env.SendTo(m.ClientID, spawn); err != nil {
			env.Log().Warnf("spawn assignment for client %d failed: %v", m.ClientID, err)
		}
	}
	env.Broadcast(l, newRoundStarted(l.StartedAt()))
	env.PublishRoundStarted(l)
	env.Log().Infof("round started in lobby %s with %d players", l.ID(), l.Size())
}

func (p *StartRound) ProcessClient(env ClientEnv) {
	if p.HasErrors() || p.StartedAt.IsZero() {
		return
	}
	env.Rounds().RoundStarted(p.StartedAt)
}

// GameEnd reports the end of a round. Payload: winner║elapsedMillis.
// The server closes the round and rebroadcasts the summary; ending a
// round twice is a consistency error, so a duplicate delivery cannot
// re-credit the winner.
type GameEnd struct {
	base
	Winner  string
	Elapsed time.Duration
}

func NewGameEnd(winner string, elapsed time.Duration) (*GameEnd, error) {
	data, err := join(winner, strconv.FormatInt(elapsed.Milliseconds(), 10))
	if err != nil {
		return nil, err
	}
	return &GameEnd{base: newBase(TypeGameEnd, data), Winner: winner, Elapsed: elapsed}, nil
}

func (p *GameEnd) Validate() {
	f := p.fields()
	if len(f) != 2 {
		p.addError("Invalid Game Over Packet received.")
	}
	if len(f) >= 1 {
		p.Winner = f[0]
	}
	if len(f) < 2 {
		p.addError("Invalid time format.")
		return
	}
	ms, err := strconv.ParseInt(f[1], 10, 64)
	if err != nil {
		p.addError("Invalid time format.")
		return
	}
	p.Elapsed = time.Duration(ms) * time.Millisecond
}

func (p *GameEnd) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	l := env.LobbyFor(clientID)
	if l == nil {
		p.addError("Client is not in a lobby.")
		return
	}
	if err := l.EndRound(); err != nil {
		p.addError("Round is not in progress.")
		return
	}
	out, _ := NewGameEnd(p.Winner, p.Elapsed)
	env.Broadcast(l, out)
	env.PublishRoundEnded(l, p.Winner, p.Elapsed)
	env.Log().Infof("round ended in lobby %s, winner %s after %s", l.ID(), p.Winner, p.Elapsed)
}

func (p *GameEnd) ProcessClient(env ClientEnv) {
	if p.HasErrors() {
		return
	}
	env.Rounds().GameOver(p.Winner, p.Elapsed)
}
