package testsupport

import (
	"path/filepath"
	"testing"

	"gantry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Browser.APIURL = "http://127.0.0.1:0"
	cfg.Steps.Setup2FA = []string{"true"}
	cfg.Steps.LinkRetrieval = []string{"true"}
	cfg.Steps.AgeVerification = []string{"true"}
	cfg.Steps.CardBinding = []string{"true"}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithCapacity overrides the browser session capacity on the test config.
func WithCapacity(capacity int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Browser.Capacity = capacity
	}
}

// WithWorkers overrides the pipeline worker count on the test config.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.Workers = workers
	}
}

// WithRetries overrides the retry policy on the test config.
func WithRetries(maxRetries, backoffSeconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.MaxRetries = maxRetries
		cfg.Pipeline.BackoffSeconds = backoffSeconds
	}
}
