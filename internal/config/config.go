// Package config loads the daemon's process configuration from the
// environment. Game rules live in the options file, not here.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr    string     `env:"HTTP_ADDR" envDefault:":8080"`
	DataDir     string     `env:"DATA_DIR" envDefault:"data"`
	OptionsPath string     `env:"OPTIONS_PATH" envDefault:"data/options.json"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	GridSeed int64 `env:"GRID_SEED" envDefault:"42"`
	GridSize int   `env:"GRID_SIZE" envDefault:"26"`

	SnapshotIntervalMinutes int `env:"SNAPSHOT_INTERVAL_MINUTES" envDefault:"5"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
