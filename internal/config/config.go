// Package config loads the server and CLI settings from an optional YAML
// file and TRIAGEM_ environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is read when no explicit config file is given.
const DefaultPath = "triagem.yaml"

// EnvPrefix marks the environment variables read by Load. A double
// underscore separates nesting levels: TRIAGEM_SERVER__PORT is server.port.
const EnvPrefix = "TRIAGEM_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Sessions SessionsConfig `koanf:"sessions"`
	Redis    RedisConfig    `koanf:"redis"`
	Flows    FlowsConfig    `koanf:"flows"`
	Security SecurityConfig `koanf:"security"`
	Input    InputConfig    `koanf:"input"`
	Handoffs HandoffsConfig `koanf:"handoffs"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SessionsConfig struct {
	Backend string        `koanf:"backend"` // memory, redis
	TTL     time.Duration `koanf:"ttl"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type FlowsConfig struct {
	Backend    string `koanf:"backend"` // memory, sqlite, file
	SQLitePath string `koanf:"sqlite_path"`
	Dir        string `koanf:"dir"`
}

type SecurityConfig struct {
	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string `koanf:"encryption_key"`
	// PIIKeys are regular expressions matched against context keys.
	PIIKeys []string `koanf:"pii_keys"`
}

type InputConfig struct {
	MaxSize int `koanf:"max_size"`
}

type HandoffsConfig struct {
	// Handlers is a YAML or JSON file binding hand-off actions to commands.
	// A missing file disables dispatching.
	Handlers string        `koanf:"handlers"`
	Timeout  time.Duration `koanf:"timeout"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.shutdown_timeout": "5s",
	"log.level":               "info",
	"log.format":              "text",
	"sessions.backend":        "memory",
	"sessions.ttl":            "24h",
	"redis.addr":              "localhost:6379",
	"redis.db":                0,
	"redis.prefix":            "triagem:session:",
	"flows.backend":           "memory",
	"flows.sqlite_path":       "triagem.db",
	"flows.dir":               ".triagem/flows",
	"input.max_size":          4096,
	"handoffs.handlers":       "handoffs.yaml",
	"handoffs.timeout":        "30s",
}

// Load reads defaults, then the YAML file at path, then the environment.
// An empty path means DefaultPath, which may be missing; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backends and malformed keys.
func (c *Config) Validate() error {
	switch c.Sessions.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("sessions.backend: unknown backend %q", c.Sessions.Backend)
	}
	switch c.Flows.Backend {
	case "memory", "sqlite", "file":
	default:
		return fmt.Errorf("flows.backend: unknown backend %q", c.Flows.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	return nil
}

// EncryptionKey decodes security.encryption_key. It returns nil when
// encryption is not configured.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Security.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("security.encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("security.encryption_key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
