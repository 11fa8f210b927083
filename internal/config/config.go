// Package config loads the server configuration from a JSON file,
// falling back to defaults when the file is absent.
package config

import (
	"encoding/json"
	"os"

	"github.com/minebuddies/server/internal/logger"
)

type Config struct {
	Addr       string        `json:"addr"`
	NatsURL    string        `json:"nats_url"`
	MinPlayers int           `json:"min_players"` // members required before a round may start
	Logger     logger.Config `json:"logger"`
}

func Default() Config {
	return Config{
		Addr:       ":8080",
		NatsURL:    "",
		MinPlayers: 2,
		Logger:     logger.DefaultConfig(),
	}
}

// Load reads config from filePath. A missing file is not an error;
// defaults are returned instead.
func Load(filePath string) (Config, error) {
	config := Default()
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}
	defer file.Close()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return config, err
	}
	return config, nil
}
