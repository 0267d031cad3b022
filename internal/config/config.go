package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the shopfloor server.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`          // Listen address (default ":8765")
	LogLevel     string        `yaml:"log_level"`     // Log level: debug, info, warn, error
	LogFormat    string        `yaml:"log_format"`    // Log format: text, json
	DBPath       string        `yaml:"db_path"`       // SQLite database path (default ~/.shopfloor/tasks.db, ":memory:" for testing)
	CatalogPath  string        `yaml:"catalog_path"`  // Machine catalog YAML/JSON; empty uses the built-in catalog
	TickInterval time.Duration `yaml:"tick_interval"` // Scheduler period (default 1s)
	NATSURL      string        `yaml:"nats_url"`      // Optional NATS server for the state mirror
	NATSSubject  string        `yaml:"nats_subject"`  // Subject for state mirror messages

	WriteTimeout      time.Duration `yaml:"write_timeout"`      // Deadline for one WebSocket write (default 10s)
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // SSE comment interval on idle streams (default 15s)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8765",
		LogLevel:     "info",
		LogFormat:    "text",
		TickInterval: time.Second,
		NATSSubject:  "shopfloor.state",

		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 15 * time.Second,
	}
}

// LoadServerConfig reads a YAML file over the defaults. Fields missing
// from the file keep their default value.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultServerConfig().TickInterval
	}
	return cfg, nil
}
