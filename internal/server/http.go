package server

import (
	"encoding/json"
	"net/http"
)

// Routes wires the HTTP surface: the websocket endpoint, a health
// check including the event stream status, and a lobby listing.
func (l *Logic) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.ServeWS)
	mux.HandleFunc("/health", l.handleHealth)
	mux.HandleFunc("/api/lobbies", l.handleLobbies)
	return mux
}

func (l *Logic) handleHealth(w http.ResponseWriter, r *http.Request) {
	natsStatus := "disconnected"
	if l.NatsConnected() {
		natsStatus = "connected"
	}
	health := map[string]interface{}{
		"status":  "ok",
		"nats":    natsStatus,
		"clients": l.ClientCount(),
		"lobbies": l.lobbies.Count(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (l *Logic) handleLobbies(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"lobbies": l.lobbies.Snapshot(),
	})
}
