package packet

import (
	"strconv"
)

// Disconnect announces a departing client. The client sends it with an
// empty payload; the server broadcast carries the departed client id.
type Disconnect struct {
	base
	ClientID int
}

// NewDisconnect builds the client-side goodbye.
func NewDisconnect() *Disconnect {
	return &Disconnect{base: newBase(TypeDisconnect, "")}
}

// NewDisconnectNotice frames the server-side departure broadcast.
func NewDisconnectNotice(clientID int) *Disconnect {
	return &Disconnect{base: newBase(TypeDisconnect, strconv.Itoa(clientID)), ClientID: clientID}
}

func (p *Disconnect) Validate() {
	f := p.fields()
	if len(f) == 0 {
		return // request form carries no data
	}
	if len(f) != 1 {
		p.addError("Invalid disconnect data.")
		return
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		p.addError("Invalid client id.")
		return
	}
	p.ClientID = id
}

// ProcessServer tears the client down through the same idempotent path
// as a transport failure and tells the remaining lobby members.
func (p *Disconnect) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	l := env.LobbyFor(clientID)
	env.RemoveClient(clientID)
	if l != nil && !l.Empty() {
		env.Broadcast(l, NewDisconnectNotice(clientID))
	}
}

func (p *Disconnect) ProcessClient(env ClientEnv) {
	if p.HasErrors() || p.ClientID == 0 {
		return
	}
	env.Players().PlayerLeft(p.ClientID)
}
