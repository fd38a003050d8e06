package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type config struct {
	ServerURL      string        `env:"STREAMCHAT_SERVER_URL" envDefault:"http://localhost:8080"`
	ReconnectDelay time.Duration `env:"STREAMCHAT_RECONNECT_DELAY" envDefault:"3s"`
	PollInterval   time.Duration `env:"STREAMCHAT_POLL_INTERVAL" envDefault:"30s"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
