package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gantry/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "gantry")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Browser.Capacity != 4 {
		t.Fatalf("unexpected default capacity: %d", cfg.Browser.Capacity)
	}
	if !cfg.Pipeline.AutoAdvance {
		t.Fatal("expected auto_advance enabled by default")
	}
	if cfg.Logging.Format != "text" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if got := cfg.DatabasePath(); got != filepath.Join(wantData, "accounts.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
	if got := cfg.SocketPath(); got != filepath.Join(wantData, "gantry.sock") {
		t.Fatalf("unexpected socket path: %q", got)
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gantry.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[browser]",
		`api_url = "http://127.0.0.1:9000/"`,
		"capacity = 2",
		"[pipeline]",
		"workers = 8",
		"max_retries = 5",
		"[steps]",
		`setup_2fa = ["true"]`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Browser.APIURL != "http://127.0.0.1:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Browser.APIURL)
	}
	if cfg.Browser.Capacity != 2 {
		t.Fatalf("unexpected capacity: %d", cfg.Browser.Capacity)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Fatalf("unexpected workers: %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.MaxRetries != 5 {
		t.Fatalf("unexpected max retries: %d", cfg.Pipeline.MaxRetries)
	}
	if got := cfg.StepCommand("setup_2fa"); len(got) != 1 || got[0] != "true" {
		t.Fatalf("unexpected step command: %v", got)
	}
	if cfg.StepCommand("card_binding") != nil {
		t.Fatal("expected unset stage command to be nil")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"capacity", func(c *config.Config) { c.Browser.Capacity = 0 }, "browser.capacity"},
		{"workers", func(c *config.Config) { c.Pipeline.Workers = -1 }, "pipeline.workers"},
		{"retries", func(c *config.Config) { c.Pipeline.MaxRetries = -2 }, "pipeline.max_retries"},
		{"backoff", func(c *config.Config) {
			c.Pipeline.BackoffSeconds = 30
			c.Pipeline.BackoffMaxSeconds = 5
		}, "backoff_max_seconds"},
		{"scheme", func(c *config.Config) { c.Browser.APIURL = "ftp://x" }, "browser.api_url"},
		{"format", func(c *config.Config) { c.Logging.Format = "yaml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[pipeline]") {
		t.Fatal("sample config missing pipeline section")
	}
}
