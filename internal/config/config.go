package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Browser contains configuration for the remote browser backend.
type Browser struct {
	APIURL                string `toml:"api_url"`
	Capacity              int    `toml:"capacity"`
	OpenTimeoutSeconds    int    `toml:"open_timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Pipeline contains configuration for worker concurrency and retry policy.
type Pipeline struct {
	Workers               int  `toml:"workers"`
	AcquireTimeoutSeconds int  `toml:"acquire_timeout_seconds"`
	StepTimeoutSeconds    int  `toml:"step_timeout_seconds"`
	MaxRetries            int  `toml:"max_retries"`
	BackoffSeconds        int  `toml:"backoff_seconds"`
	BackoffMaxSeconds     int  `toml:"backoff_max_seconds"`
	AutoAdvance           bool `toml:"auto_advance"`
}

// Steps maps each pipeline stage to the external automation command that runs it.
type Steps struct {
	Setup2FA        []string `toml:"setup_2fa"`
	LinkRetrieval   []string `toml:"link_retrieval"`
	AgeVerification []string `toml:"age_verification"`
	CardBinding     []string `toml:"card_binding"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	PipelineDone   bool   `toml:"pipeline_done"`
	Errors         bool   `toml:"errors"`
	Batch          bool   `toml:"batch"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Events contains configuration for the progress event hub.
type Events struct {
	BufferSize       int `toml:"buffer_size"`
	SubscriberBuffer int `toml:"subscriber_buffer"`
}

// Config encapsulates all configuration values for Gantry.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Browser: remote browser backend endpoint and session capacity
//   - Pipeline: worker concurrency, timeouts, and retry policy
//   - Steps: external automation commands per stage
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - Events: progress event buffering
type Config struct {
	Paths         Paths         `toml:"paths"`
	Browser       Browser       `toml:"browser"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Steps         Steps         `toml:"steps"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Events        Events        `toml:"events"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/gantry/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/gantry/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gantry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the account database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "accounts.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "gantry.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "gantryd.lock")
}

// StepCommand returns the configured automation command for a stage key.
func (c *Config) StepCommand(stage string) []string {
	switch stage {
	case "setup_2fa":
		return c.Steps.Setup2FA
	case "link_retrieval":
		return c.Steps.LinkRetrieval
	case "age_verification":
		return c.Steps.AgeVerification
	case "card_binding":
		return c.Steps.CardBinding
	default:
		return nil
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
