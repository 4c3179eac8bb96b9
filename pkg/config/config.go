// Package config loads YAML configuration for the fdbridge binaries.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Engine modes.
const (
	EngineSim    = "sim"
	EngineRemote = "remote"
)

// Config is the file configuration for the fdbridge binaries. Zero
// values fall back to defaults before validation.
type Config struct {
	// APIVersion is pinned against the engine on startup.
	APIVersion int `yaml:"api_version" validate:"required,min=100,max=101"`

	// ClusterFile is the connection descriptor path; empty selects the
	// engine default.
	ClusterFile string `yaml:"cluster_file"`

	// DatabaseName is the keyspace to open.
	DatabaseName string `yaml:"database_name" validate:"required"`

	// CompletionQueueSize bounds the bridge's completion handoff queue.
	CompletionQueueSize int `yaml:"completion_queue_size" validate:"min=1"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// MetricsAddr is the listen address for the /metrics endpoint;
	// empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig selects which engine implementation backs the bridge.
type EngineConfig struct {
	// Mode is sim (in-process) or remote (engine daemon over mangos).
	Mode string `yaml:"mode" validate:"required,oneof=sim remote"`

	// Addr is the daemon address for remote mode, e.g. tcp://127.0.0.1:4500.
	Addr string `yaml:"addr" validate:"required_if=Mode remote"`

	// LatencyMS is the simulated completion latency for sim mode.
	LatencyMS int `yaml:"latency_ms" validate:"min=0"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		APIVersion:          101,
		DatabaseName:        "DB",
		CompletionQueueSize: 256,
		LogLevel:            "info",
		Engine: EngineConfig{
			Mode:      EngineSim,
			LatencyMS: 1,
		},
	}
}

// Load reads a YAML config file, fills defaults, and validates. An
// empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.APIVersion == 0 {
		c.APIVersion = def.APIVersion
	}
	if c.DatabaseName == "" {
		c.DatabaseName = def.DatabaseName
	}
	if c.CompletionQueueSize == 0 {
		c.CompletionQueueSize = def.CompletionQueueSize
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Engine.Mode == "" {
		c.Engine.Mode = def.Engine.Mode
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config: field %s failed %s validation", e.Field(), e.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
