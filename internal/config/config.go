// Package config loads the package specific configs from environment
// variables (and a .env file when present), and validates them.
//
// Packages requiring configs expose:
// - A Config struct with the package specific config parameters.
// - A NewConfig() function returning a Config with default parameters.
// - A Validate() method to validate the config.
// - A String() method to return a printable form of the config.
package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jwulff/livehistory/internal/liveapi"
	"github.com/jwulff/livehistory/internal/query"
	"github.com/jwulff/livehistory/internal/storage/sqlite"
	"github.com/jwulff/livehistory/internal/syncer"
)

type Config struct {
	Store sqlite.Config
	API   liveapi.Config
	Query query.Config
	Sync  syncer.Config

	// LogLevel is one of debug, info, warn or error. Default is info.
	LogLevel slog.Level `env:"LOG_LEVEL"`
}

// Load creates a new [Config] with default parameters, that get overwritten by env variables when specified.
// It returns an error if the config is invalid.
func Load() (Config, error) {
	config := New()
	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate config: %w", err)
	}
	return config, nil
}

func New() Config {
	return Config{
		Store:    sqlite.NewConfig(),
		API:      liveapi.NewConfig(),
		Query:    query.NewConfig(),
		Sync:     syncer.NewConfig(),
		LogLevel: slog.LevelInfo,
	}
}

func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Query.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// Print writes every package config to w.
func (c Config) Print(w io.Writer) {
	fmt.Fprintln(w, c.Store)
	fmt.Fprintln(w, c.API)
	fmt.Fprintln(w, c.Query)
	fmt.Fprintln(w, c.Sync)
	fmt.Fprintf(w, "LogLevel: %s\n", c.LogLevel)
}
