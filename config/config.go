// Package config loads server configuration from the environment.
// Command-line flags in cmd/server override these values.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"invoice-billing"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Path string `envconfig:"DB_PATH" default:"billing.db"`
	}

	Locks struct {
		TTL           time.Duration `envconfig:"LOCK_TTL" default:"5m"`
		SweepInterval time.Duration `envconfig:"LOCK_SWEEP_INTERVAL" default:"30s"`
	}

	Server struct {
		ReadTimeout time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
		// Zero write timeout keeps long-lived event streams open.
		WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0"`
		IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
