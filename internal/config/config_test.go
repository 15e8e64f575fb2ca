package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Fetch.Attempts != 3 || cfg.Engine.Concurrency != 10 || cfg.Output.MaxNodes != 200 || cfg.Output.LabelGroupCap != 50 {
		t.Fatalf("defaults=%+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "fetch:\n  timeout: 5s\n  attempts: 2\nengine:\n  sequential_delay: 0s\noutput:\n  max_nodes: 100\nlog:\n  level: debug\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Fetch.Timeout != 5*time.Second || cfg.Fetch.Attempts != 2 || cfg.Output.MaxNodes != 100 || cfg.Log.Level != "debug" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Fetch.MaxBytes != Default().Fetch.MaxBytes {
		t.Fatalf("unset keys must keep defaults: %+v", cfg.Fetch)
	}
	if got := cfg.EngineOptions().SequentialDelay; got >= 0 {
		t.Fatalf("zero sequential delay should disable the gap, got %v", got)
	}
	if got := cfg.FetchOptions(); got.Attempts != 2 || got.Timeout != 5*time.Second {
		t.Fatalf("fetch options=%+v", got)
	}
	if got := cfg.CompilerOptions(); got.MaxNodes != 100 || got.Tolerance != 50 {
		t.Fatalf("compiler options=%+v", got)
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing default file must not fail: %v", err)
	}
	if cfg.HTTP.Listen != DefaultListen {
		t.Fatalf("cfg=%+v", cfg)
	}

	writeFile(t, filepath.Join(dir, AppName, "config.yaml"), "http:\n  listen: 0.0.0.0:8080\n")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Listen != "0.0.0.0:8080" {
		t.Fatalf("listen=%q", cfg.HTTP.Listen)
	}
}

func TestLoad_Strict(t *testing.T) {
	for name, text := range map[string]string{
		"unknown key":   "fetch:\n  retries: 3\n",
		"two documents": "log:\n  level: info\n---\nlog:\n  level: debug\n",
		"bad duration":  "fetch:\n  timeout: soon\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, text)
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"timeout", func(c *Config) { c.Fetch.Timeout = 0 }, ErrInvalidTimeout},
		{"max bytes", func(c *Config) { c.Fetch.MaxBytes = -1 }, ErrInvalidMaxBytes},
		{"attempts", func(c *Config) { c.Fetch.Attempts = 11 }, ErrInvalidAttempts},
		{"base delay", func(c *Config) { c.Fetch.BaseDelay = -time.Second }, ErrInvalidDelay},
		{"zero base delay", func(c *Config) { c.Fetch.BaseDelay = 0 }, ErrInvalidDelay},
		{"concurrency", func(c *Config) { c.Engine.Concurrency = 0 }, ErrInvalidConcurrency},
		{"max nodes", func(c *Config) { c.Output.MaxNodes = 0 }, ErrInvalidLimit},
		{"health url", func(c *Config) { c.Output.HealthCheckURL = "ftp://x" }, ErrInvalidHealthCheck},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
		{"listen", func(c *Config) { c.HTTP.Listen = "25500" }, ErrInvalidListen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
		})
	}
}
