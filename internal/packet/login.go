package packet

import (
	"strconv"
)

// Login announces a client to a lobby. Payload: clientID║username║lobbyID.
// The client sends a zero client id placeholder; the server stamps the
// assigned id before fanning the packet back out, so receiving clients
// learn both their own id and the identity of new players.
type Login struct {
	base
	ClientID int
	Username string
	LobbyID  string
}

// NewLogin builds the client-side login request. The id field is a
// placeholder for the server to fill in.
func NewLogin(username, lobbyID string) (*Login, error) {
	data, err := join("0", username, lobbyID)
	if err != nil {
		return nil, err
	}
	return &Login{base: newBase(TypeLogin, data)}, nil
}

func newLoginBroadcast(clientID int, username, lobbyID string) *Login {
	data, _ := join(strconv.Itoa(clientID), username, lobbyID)
	return &Login{
		base:     newBase(TypeLogin, data),
		ClientID: clientID,
		Username: username,
		LobbyID:  lobbyID,
	}
}

func (p *Login) Validate() {
	f := p.fields()
	if len(f) != 3 {
		p.addError("Invalid login data.")
		return
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		p.addError("Invalid client id.")
	} else {
		p.ClientID = id
	}
	if !ValidUsername(f[1]) {
		p.addError("Invalid username: must be 3-20 characters, alphanumeric and underscore only.")
	} else {
		p.Username = f[1]
	}
	if f[2] == "" {
		p.addError("Invalid lobby id.")
	} else {
		p.LobbyID = f[2]
	}
}

func (p *Login) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	env.SetUsername(clientID, p.Username)
	l, err := env.JoinLobby(clientID, p.LobbyID)
	if err != nil {
		p.addError("Client is already in a lobby.")
		return
	}
	env.Log().Infof("client %d (%s) joined lobby %s", clientID, p.Username, p.LobbyID)
	env.Broadcast(l, newLoginBroadcast(clientID, p.Username, p.LobbyID))
}

func (p *Login) ProcessClient(env ClientEnv) {
	if p.HasErrors() {
		return
	}
	if p.Username == env.Username() && env.ClientID() == 0 {
		env.AdoptClientID(p.ClientID)
		return
	}
	if p.ClientID == env.ClientID() {
		return
	}
	env.Players().PlayerJoined(p.ClientID, p.Username)
}

// ValidUsername enforces 3-20 word characters, which also guarantees
// usernames can never collide with the payload delimiter. The server
// applies the same rule at the websocket upgrade and in LOGIN.
func ValidUsername(username string) bool {
	if len(username) < 3 || len(username) > 20 {
		return false
	}
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}
	return true
}
