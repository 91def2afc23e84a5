// Package config loads the docdenoise settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/denoise"
)

// DefaultPath is where commands look for a config file when --config is not given
const DefaultPath = "docdenoise.yaml"

// Config holds all docdenoise configuration.
type Config struct {
	// Competition directory layout
	Data dataset.Layout `yaml:"data"`

	// Filter used by denoise, submit and watch
	Filter FilterConfig `yaml:"filter"`

	// Parallelism for batch stages (0 = GOMAXPROCS)
	Workers int `yaml:"workers"`

	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Tune    TuneConfig    `yaml:"tune"`
	Logging LoggingConfig `yaml:"logging"`
}

// FilterConfig selects a denoising filter from the registry.
type FilterConfig struct {
	Name    string         `yaml:"name"`
	Params  denoise.Params `yaml:"params,omitempty"`
	LUTPath string         `yaml:"lut_path,omitempty"`
}

// Build constructs the configured filter
func (f FilterConfig) Build() (denoise.Filter, error) {
	return denoise.New(f.Name, f.Params, f.LUTPath)
}

// StoreConfig configures the run ledger.
type StoreConfig struct {
	Driver string `yaml:"driver"` // fs, sqlite
	Path   string `yaml:"path"`
}

// ServerConfig configures the job server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// TuneConfig configures the parameter search.
type TuneConfig struct {
	Iters     int     `yaml:"iters"`
	Pop       int     `yaml:"pop"`
	Seed      int64   `yaml:"seed"`
	Rounds    int     `yaml:"rounds"`
	Patience  int     `yaml:"patience"`
	Threshold float64 `yaml:"threshold"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Data: dataset.DefaultLayout(),
		Filter: FilterConfig{
			Name: "copy",
		},
		Store: StoreConfig{
			Driver: "fs",
			Path:   "./data",
		},
		Server: ServerConfig{
			Addr: "localhost:8080",
		},
		Tune: TuneConfig{
			Iters:     50,
			Pop:       20,
			Seed:      42,
			Rounds:    5,
			Patience:  2,
			Threshold: 0.001,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if level := os.Getenv("DOCDENOISE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if workers := os.Getenv("DOCDENOISE_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid DOCDENOISE_WORKERS %q: %w", workers, err)
		}
		c.Workers = n
	}
	if path := os.Getenv("DOCDENOISE_STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	return nil
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Data.Pattern == "" {
		return fmt.Errorf("data.pattern must not be empty")
	}
	if _, err := filepath.Match(c.Data.Pattern, ""); err != nil {
		return fmt.Errorf("invalid data.pattern %q: %w", c.Data.Pattern, err)
	}

	known := false
	for _, name := range denoise.Names() {
		if c.Filter.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown filter: %s (valid: %v)", c.Filter.Name, denoise.Names())
	}

	switch c.Store.Driver {
	case "fs", "sqlite":
	default:
		return fmt.Errorf("invalid store driver: %s (valid: fs, sqlite)", c.Store.Driver)
	}

	validLevel := false
	for _, l := range ValidLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	if c.Tune.Pop < 20 {
		return fmt.Errorf("tune.pop must be >= 20, got %d", c.Tune.Pop)
	}
	if c.Tune.Iters <= 0 || c.Tune.Rounds <= 0 {
		return fmt.Errorf("tune.iters and tune.rounds must be positive")
	}

	return nil
}
