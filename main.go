// Application entry point: loads configuration, initializes logging,
// connects to NATS when configured, and starts the game server.
package main

import (
	"flag"
	"net/http"

	"github.com/nats-io/nats.go"

	"github.com/minebuddies/server/internal/config"
	"github.com/minebuddies/server/internal/logger"
	"github.com/minebuddies/server/internal/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "server_config.json", "path to the server config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Setup(logger.DefaultConfig())
		logger.New("main").Fatalf("error loading config: %v", err)
	}
	logger.Setup(cfg.Logger)
	log := logger.New("main")
	log.WithFields(map[string]interface{}{
		"addr":        cfg.Addr,
		"min_players": cfg.MinPlayers,
		"level":       cfg.Logger.Level,
	}).Info("configuration loaded")

	var nc *nats.Conn
	var js nats.JetStreamContext
	if cfg.NatsURL != "" {
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Errorf("error connecting to NATS: %v", err)
			log.Warn("running without NATS; game events will not be published")
			nc = nil
		} else {
			log.Infof("connected to NATS at %s", cfg.NatsURL)
			js, err = nc.JetStream()
			if err != nil {
				log.Errorf("error getting JetStream context: %v", err)
				js = nil
			} else {
				server.EnsureStreams(js, log)
			}
		}
	}

	logic := server.New(cfg.MinPlayers, nc, js)

	log.Infof("server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, logic.Routes()); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
