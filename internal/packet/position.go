package packet

import (
	"strconv"
)

// Move carries a dig/strafe intent as a direction vector.
// Payload: clientID║dx║dy. The server stamps the sender id and fans the
// move out to the rest of the lobby.
type Move struct {
	base
	ClientID int
	DX, DY   float32
}

func NewMove(dx, dy float32) *Move {
	data, _ := join("0", formatFloat(dx), formatFloat(dy))
	return &Move{base: newBase(TypeMove, data), DX: dx, DY: dy}
}

func (p *Move) Validate() {
	f := p.fields()
	if len(f) != 3 {
		p.addError("Invalid move data.")
		return
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		p.addError("Invalid client id.")
	} else {
		p.ClientID = id
	}
	dx, errX := parseFloat(f[1])
	dy, errY := parseFloat(f[2])
	if errX != nil || errY != nil {
		p.addError("Invalid move vector.")
		return
	}
	p.DX, p.DY = dx, dy
}

func (p *Move) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	l := env.LobbyFor(clientID)
	if l == nil {
		p.addError("Client is not in a lobby.")
		return
	}
	if !l.AcceptsGameplay() {
		return
	}
	out := &Move{ClientID: clientID, DX: p.DX, DY: p.DY}
	data, _ := join(strconv.Itoa(clientID), formatFloat(p.DX), formatFloat(p.DY))
	out.base = newBase(TypeMove, data)
	env.Broadcast(l, out, clientID)
}

func (p *Move) ProcessClient(env ClientEnv) {
	if p.HasErrors() || p.ClientID == env.ClientID() {
		return
	}
	env.Positions().Moved(p.ClientID, p.DX, p.DY)
}

// PositionUpdate announces an authoritative or self-reported player
// position. Payload: clientID║x║y║rot. Re-applying the same update is
// harmless, so duplicate delivery needs no guard.
type PositionUpdate struct {
	base
	ClientID  int
	X, Y, Rot float32
}

func NewPositionUpdate(clientID int, x, y, rot float32) *PositionUpdate {
	data, _ := join(strconv.Itoa(clientID), formatFloat(x), formatFloat(y), formatFloat(rot))
	return &PositionUpdate{base: newBase(TypePositionUpdate, data), ClientID: clientID, X: x, Y: y, Rot: rot}
}

func (p *PositionUpdate) Validate() {
	f := p.fields()
	if len(f) != 4 {
		p.addError("Invalid position data.")
		return
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		p.addError("Invalid client id.")
	} else {
		p.ClientID = id
	}
	x, errX := parseFloat(f[1])
	y, errY := parseFloat(f[2])
	rot, errR := parseFloat(f[3])
	if errX != nil || errY != nil || errR != nil {
		p.addError("Invalid position coordinates.")
		return
	}
	p.X, p.Y, p.Rot = x, y, rot
}

func (p *PositionUpdate) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	l := env.LobbyFor(clientID)
	if l == nil {
		p.addError("Client is not in a lobby.")
		return
	}
	if !l.AcceptsGameplay() {
		return
	}
	env.Broadcast(l, NewPositionUpdate(clientID, p.X, p.Y, p.Rot), clientID)
}

func (p *PositionUpdate) ProcessClient(env ClientEnv) {
	if p.HasErrors() {
		return
	}
	// Own id means a spawn assignment from the server; apply it too.
	env.Positions().SetPosition(p.ClientID, p.X, p.Y, p.Rot)
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}
