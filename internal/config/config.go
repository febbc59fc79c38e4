package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	TokenFile string `yaml:"token_file"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type EngineConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		DB:     DBConfig{Path: "./splitkit.db"},
		Engine: EngineConfig{FlushInterval: 30 * time.Second},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the config file at path on top of defaults, then applies
// env overrides. An empty path means defaults plus env only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SPLITKIT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SPLITKIT_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("SPLITKIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
