package bridge

import (
	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/metrics"
)

// Config defines bridge behavior. Logger and Metrics are optional; nil
// selects the process-wide defaults.
type Config struct {
	// APIVersion is pinned against the native library on Start.
	APIVersion int

	// DefaultClusterFile is used by OpenDefault. Empty lets the native
	// library pick the platform default.
	DefaultClusterFile string

	// CompletionQueueSize bounds the handoff queue between the native
	// network goroutine and the dispatcher (default: 256).
	CompletionQueueSize int

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		APIVersion:          101,
		CompletionQueueSize: 256,
	}
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.APIVersion == 0 {
		return ErrInvalidAPIVersion
	}
	if c.CompletionQueueSize < 1 {
		return ErrInvalidQueueSize
	}
	return nil
}
