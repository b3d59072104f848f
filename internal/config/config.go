// Package config loads democrite.yml, the configuration shared by the democrite CLI and
// the blackboardd host.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/storage"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "democrite.yml"

// Environment overrides applied by Load.
const (
	EnvRedisURL  = "DEMOCRITE_REDIS_URL"
	EnvNamespace = "DEMOCRITE_NAMESPACE"
)

const (
	DefaultNamespace       = "default"
	DefaultRedisURL        = "redis://localhost:6379"
	DefaultRedisImage      = "redis:7-alpine"
	DefaultSaveDelay       = 2 * time.Second
	DefaultForceSaveAfter  = 10
	DefaultMaxCascadeDepth = 32
	DefaultServerAddr      = ":8080"
	DefaultExecutionBuffer = 256
)

// Config represents the top-level democrite.yml configuration
type Config struct {
	Version   string          `yaml:"version"`
	Namespace string          `yaml:"namespace,omitempty"`
	Redis     RedisConfig     `yaml:"redis,omitempty"`
	Board     BoardConfig     `yaml:"board,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	Templates TemplatesConfig `yaml:"templates"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Execution ExecutionConfig `yaml:"execution,omitempty"`
}

// RedisConfig locates the Redis server. Image is only used by `democrite store up`.
type RedisConfig struct {
	URL   string `yaml:"url,omitempty"`
	Image string `yaml:"image,omitempty"`
}

// BoardConfig tunes board persistence and cascades
type BoardConfig struct {
	SaveDelay       *Duration `yaml:"save_delay,omitempty"`
	ForceSaveAfter  *int      `yaml:"force_save_after,omitempty"`   // Batches after which state is saved without waiting (default 10)
	MaxCascadeDepth *int      `yaml:"max_cascade_depth,omitempty"` // Nested event reactions allowed (default 32)
}

// StorageConfig selects where records and state live
type StorageConfig struct {
	Backend storage.Backend `yaml:"backend,omitempty"`
}

// TemplatesConfig points at the board template file
type TemplatesConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the health and metrics server of blackboardd
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// ExecutionConfig sizes the sequence and signal dispatch queue
type ExecutionConfig struct {
	Buffer int `yaml:"buffer,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("2s", "500ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Validate performs strict validation on the configuration and applies defaults
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if c.Redis.Image == "" {
		c.Redis.Image = DefaultRedisImage
	}

	if c.Board.SaveDelay == nil {
		c.Board.SaveDelay = &Duration{DefaultSaveDelay}
	} else if c.Board.SaveDelay.Duration < 0 {
		return fmt.Errorf("board.save_delay must be >= 0, got %s", c.Board.SaveDelay)
	}
	if c.Board.ForceSaveAfter == nil {
		v := DefaultForceSaveAfter
		c.Board.ForceSaveAfter = &v
	} else if *c.Board.ForceSaveAfter < 1 {
		return fmt.Errorf("board.force_save_after must be >= 1, got %d", *c.Board.ForceSaveAfter)
	}
	if c.Board.MaxCascadeDepth == nil {
		v := DefaultMaxCascadeDepth
		c.Board.MaxCascadeDepth = &v
	} else if *c.Board.MaxCascadeDepth < 1 {
		return fmt.Errorf("board.max_cascade_depth must be >= 1, got %d", *c.Board.MaxCascadeDepth)
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = storage.BackendRedis
	}
	if err := c.Storage.Backend.Validate(); err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}

	if c.Templates.Path == "" {
		return fmt.Errorf("templates.path is required")
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Execution.Buffer == 0 {
		c.Execution.Buffer = DefaultExecutionBuffer
	} else if c.Execution.Buffer < 0 {
		return fmt.Errorf("execution.buffer must be >= 1, got %d", c.Execution.Buffer)
	}

	return nil
}

// BoardSettings returns the board settings of a validated config.
func (c *Config) BoardSettings() board.Settings {
	return board.Settings{
		SaveDelay:       c.Board.SaveDelay.Duration,
		ForceSaveAfter:  *c.Board.ForceSaveAfter,
		MaxCascadeDepth: *c.Board.MaxCascadeDepth,
	}
}

// ApplyEnv overrides values with the DEMOCRITE_* environment variables that are set
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}
}

// Load reads democrite.yml from path, applies environment overrides and validates it
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
