// Package config holds the runtime configuration: defaults, the optional YAML
// file and validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/submerge/internal/aggregate"
	"github.com/John-Robertt/submerge/internal/compiler"
	"github.com/John-Robertt/submerge/internal/fetch"
)

// AppName is used for the XDG config directory.
const AppName = "submerge"

const (
	DefaultListen         = "127.0.0.1:25500"
	DefaultConvertTimeout = 120 * time.Second
	DefaultLogLevel       = "info"
)

type Config struct {
	Fetch  FetchConfig  `yaml:"fetch"`
	Engine EngineConfig `yaml:"engine"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
	HTTP   HTTPConfig   `yaml:"http"`
}

type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	MaxRedirects int           `yaml:"max_redirects"`
	Attempts     int           `yaml:"attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	UserAgent    string        `yaml:"user_agent"`
}

type EngineConfig struct {
	Concurrency         int           `yaml:"concurrency"`
	ConcurrentThreshold int           `yaml:"concurrent_threshold"`
	SequentialDelay     time.Duration `yaml:"sequential_delay"`
	TaskTimeout         time.Duration `yaml:"task_timeout"`
}

type OutputConfig struct {
	MaxNodes       int    `yaml:"max_nodes"`
	LabelGroupCap  int    `yaml:"label_group_cap"`
	HealthCheckURL string `yaml:"health_check_url"`
	Interval       int    `yaml:"interval"`
	Tolerance      int    `yaml:"tolerance"`
	// Template is a base template file replacing the embedded one.
	Template string `yaml:"template"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type HTTPConfig struct {
	Listen         string        `yaml:"listen"`
	ConvertTimeout time.Duration `yaml:"convert_timeout"`
}

// Default returns a Config holding every default value.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:      fetch.DefaultTimeout,
			MaxBytes:     fetch.DefaultMaxBytes,
			MaxRedirects: fetch.DefaultMaxRedirects,
			Attempts:     fetch.DefaultAttempts,
			BaseDelay:    fetch.DefaultBaseDelay,
			UserAgent:    fetch.DefaultUserAgent,
		},
		Engine: EngineConfig{
			Concurrency:         aggregate.DefaultConcurrency,
			ConcurrentThreshold: aggregate.DefaultConcurrentThreshold,
			SequentialDelay:     aggregate.DefaultSequentialDelay,
			TaskTimeout:         aggregate.DefaultTaskTimeout,
		},
		Output: OutputConfig{
			MaxNodes:       compiler.DefaultMaxNodes,
			LabelGroupCap:  compiler.DefaultLabelGroupCap,
			HealthCheckURL: compiler.DefaultHealthCheckURL,
			Interval:       compiler.DefaultInterval,
			Tolerance:      compiler.DefaultTolerance,
		},
		Log:  LogConfig{Level: DefaultLogLevel},
		HTTP: HTTPConfig{Listen: DefaultListen, ConvertTimeout: DefaultConvertTimeout},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/submerge/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads the file at path over the defaults. An empty path means
// DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// decodeStrict rejects unknown keys and more than one YAML document.
func decodeStrict(data []byte, out *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("config must contain a single YAML document")
	}
	return nil
}

func (c *Config) Validate() error {
	switch {
	case c.Fetch.Timeout <= 0:
		return fmt.Errorf("fetch.timeout: %w", ErrInvalidTimeout)
	case c.Fetch.MaxBytes <= 0:
		return fmt.Errorf("fetch.max_bytes: %w", ErrInvalidMaxBytes)
	case c.Fetch.MaxRedirects <= 0:
		return fmt.Errorf("fetch.max_redirects: %w", ErrInvalidRedirects)
	case c.Fetch.Attempts < 1 || c.Fetch.Attempts > 10:
		return fmt.Errorf("fetch.attempts: %w", ErrInvalidAttempts)
	case c.Fetch.BaseDelay <= 0:
		return fmt.Errorf("fetch.base_delay: %w", ErrInvalidDelay)
	case c.Engine.Concurrency <= 0:
		return fmt.Errorf("engine.concurrency: %w", ErrInvalidConcurrency)
	case c.Engine.ConcurrentThreshold <= 0:
		return fmt.Errorf("engine.concurrent_threshold: %w", ErrInvalidLimit)
	case c.Engine.SequentialDelay < 0:
		return fmt.Errorf("engine.sequential_delay: %w", ErrInvalidDelay)
	case c.Engine.TaskTimeout <= 0:
		return fmt.Errorf("engine.task_timeout: %w", ErrInvalidTimeout)
	case c.Output.MaxNodes <= 0:
		return fmt.Errorf("output.max_nodes: %w", ErrInvalidLimit)
	case c.Output.LabelGroupCap <= 0:
		return fmt.Errorf("output.label_group_cap: %w", ErrInvalidLimit)
	case c.Output.Interval <= 0:
		return fmt.Errorf("output.interval: %w", ErrInvalidLimit)
	case c.Output.Tolerance <= 0:
		return fmt.Errorf("output.tolerance: %w", ErrInvalidLimit)
	case c.HTTP.ConvertTimeout <= 0:
		return fmt.Errorf("http.convert_timeout: %w", ErrInvalidTimeout)
	}

	u, err := url.Parse(c.Output.HealthCheckURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("output.health_check_url: %w", ErrInvalidHealthCheck)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level %q: %w", c.Log.Level, ErrInvalidLogLevel)
	}
	if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
		return fmt.Errorf("http.listen %q: %w", c.HTTP.Listen, ErrInvalidListen)
	}
	return nil
}

func (c *Config) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:      c.Fetch.Timeout,
		MaxBytes:     c.Fetch.MaxBytes,
		MaxRedirects: c.Fetch.MaxRedirects,
		Attempts:     c.Fetch.Attempts,
		BaseDelay:    c.Fetch.BaseDelay,
		UserAgent:    c.Fetch.UserAgent,
	}
}

// EngineOptions maps a zero sequential delay to "no delay".
func (c *Config) EngineOptions() aggregate.Options {
	delay := c.Engine.SequentialDelay
	if delay == 0 {
		delay = -1
	}
	return aggregate.Options{
		Concurrency:         c.Engine.Concurrency,
		ConcurrentThreshold: c.Engine.ConcurrentThreshold,
		SequentialDelay:     delay,
		TaskTimeout:         c.Engine.TaskTimeout,
	}
}

func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{
		MaxNodes:       c.Output.MaxNodes,
		LabelGroupCap:  c.Output.LabelGroupCap,
		HealthCheckURL: c.Output.HealthCheckURL,
		Interval:       c.Output.Interval,
		Tolerance:      c.Output.Tolerance,
	}
}
