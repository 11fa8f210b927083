package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/minebuddies/server/internal/items"
	"github.com/minebuddies/server/internal/lobby"
	"github.com/minebuddies/server/internal/logger"
)

const (
	eventStream    = "GAME_EVENTS"
	eventRetention = 30 * time.Minute
)

// EnsureStreams creates or updates the JetStream stream the game-event
// subjects publish into. Called once at startup when NATS is available.
func EnsureStreams(js nats.JetStreamContext, log *logger.Logger) {
	streamConfig := &nats.StreamConfig{
		Name:     eventStream,
		Subjects: []string{"rounds.started.*", "rounds.ended.*", "items.spawned.*"},
		Storage:  nats.FileStorage,
		MaxAge:   eventRetention,
	}
	if _, err := js.StreamInfo(eventStream); err != nil {
		if _, err := js.AddStream(streamConfig); err != nil {
			log.Errorf("error creating stream %s: %v", eventStream, err)
		} else {
			log.Infof("created stream: %s", eventStream)
		}
		return
	}
	if _, err := js.UpdateStream(streamConfig); err != nil {
		log.Errorf("error updating stream %s: %v", eventStream, err)
	}
}

// publish marshals and publishes one event, nil-safe for servers
// running without NATS.
func (l *Logic) publish(subject string, event map[string]interface{}) {
	if l.nc == nil || l.js == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		l.log.Errorf("failed to marshal event for %s: %v", subject, err)
		return
	}
	if _, err := l.js.Publish(subject, data); err != nil {
		l.log.Errorf("failed to publish event to %s: %v", subject, err)
	}
}

func (l *Logic) PublishRoundStarted(lb *lobby.Lobby) {
	l.publish(fmt.Sprintf("rounds.started.%s", lb.ID()), map[string]interface{}{
		"lobby_id":  lb.ID(),
		"players":   lb.Size(),
		"timestamp": time.Now().Unix(),
	})
}

func (l *Logic) PublishRoundEnded(lb *lobby.Lobby, winner string, elapsed time.Duration) {
	l.publish(fmt.Sprintf("rounds.ended.%s", lb.ID()), map[string]interface{}{
		"lobby_id":   lb.ID(),
		"winner":     winner,
		"elapsed_ms": elapsed.Milliseconds(),
		"timestamp":  time.Now().Unix(),
	})
}

func (l *Logic) PublishItemSpawned(lb *lobby.Lobby, item *items.Item) {
	l.publish(fmt.Sprintf("items.spawned.%s", lb.ID()), map[string]interface{}{
		"lobby_id":  lb.ID(),
		"item_id":   item.ID,
		"owner":     item.Owner,
		"item_type": item.Type.String(),
		"timestamp": time.Now().Unix(),
	})
}
