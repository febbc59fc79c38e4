package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/config"
	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/store"
)

// loadConfig resolves the effective config: defaults, then the config
// file, then env, then explicit flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	return cfg, nil
}

// withRegistry opens the store, builds a registry, executes the
// function, and handles cleanup.
func withRegistry(fn func(*engine.Registry) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	b := bus.New(log.Logger)
	reg, err := engine.New(s, b, engine.WithLogger(log.Logger))
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	defer reg.Close()

	return fn(reg)
}
