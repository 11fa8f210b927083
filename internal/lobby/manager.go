package lobby

import (
	"fmt"
	"sync"

	"github.com/minebuddies/server/internal/items"
)

// Manager tracks live lobbies by id and which lobby each client is in.
// A client belongs to at most one lobby at a time; lobbies are created
// on first join and torn down as soon as they empty.
type Manager struct {
	mu       sync.Mutex
	lobbies  map[string]*Lobby
	byClient map[int]string
	itemIDs  *items.Sequence // shared so item ids never repeat across lobbies
}

func NewManager() *Manager {
	return &Manager{
		lobbies:  make(map[string]*Lobby),
		byClient: make(map[int]string),
		itemIDs:  items.NewSequence(),
	}
}

// Join places a client into the named lobby, creating it if needed.
func (m *Manager) Join(lobbyID string, member Member) (*Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.byClient[member.ClientID]; ok {
		return nil, fmt.Errorf("client %d is already in lobby %s", member.ClientID, current)
	}
	l, ok := m.lobbies[lobbyID]
	if !ok {
		l = New(lobbyID, m.itemIDs)
		m.lobbies[lobbyID] = l
	}
	l.Join(member)
	m.byClient[member.ClientID] = lobbyID
	return l, nil
}

// Leave removes the client from whatever lobby it is in, deleting the
// lobby once empty. Safe to call for clients that are in no lobby.
func (m *Manager) Leave(clientID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lobbyID, ok := m.byClient[clientID]
	if !ok {
		return
	}
	delete(m.byClient, clientID)
	l := m.lobbies[lobbyID]
	if l == nil {
		return
	}
	l.Leave(clientID)
	if l.Empty() {
		delete(m.lobbies, lobbyID)
	}
}

// Lobby returns the lobby with the given id, or nil.
func (m *Manager) Lobby(lobbyID string) *Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lobbies[lobbyID]
}

// LobbyFor returns the lobby the client currently belongs to, or nil.
func (m *Manager) LobbyFor(clientID int) *Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lobbyID, ok := m.byClient[clientID]; ok {
		return m.lobbies[lobbyID]
	}
	return nil
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lobbies)
}

// Info is a point-in-time view of one lobby for the HTTP API.
type Info struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Members int    `json:"members"`
}

// Snapshot lists all live lobbies.
func (m *Manager) Snapshot() []Info {
	m.mu.Lock()
	lobbies := make([]*Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		lobbies = append(lobbies, l)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(lobbies))
	for _, l := range lobbies {
		out = append(out, Info{ID: l.ID(), State: l.State().String(), Members: l.Size()})
	}
	return out
}
