package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" yaml:"environment"` // "development" or "production"
	Logging     LoggingConfig   `toml:"logging" yaml:"logging"`
	Storage     StorageConfig   `toml:"storage" yaml:"storage"`
	Harvester   HarvesterConfig `toml:"harvester" yaml:"harvester"`
	Scheduler   SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output" yaml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger" yaml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"`
}

// HarvesterConfig controls the chat platform harvest worker
type HarvesterConfig struct {
	BaseURL        string        `toml:"base_url" yaml:"base_url" validate:"required,url"`
	UserAgent      string        `toml:"user_agent" yaml:"user_agent"`
	SyncPeriod     time.Duration `toml:"sync_period" yaml:"sync_period" validate:"min=1s"`
	RequestDelay   time.Duration `toml:"request_delay" yaml:"request_delay" validate:"min=0"`
	RequestTimeout time.Duration `toml:"request_timeout" yaml:"request_timeout" validate:"min=1s"`
	PageSize       int           `toml:"page_size" yaml:"page_size" validate:"min=1,max=100"`

	// RequestsPerSecond caps the shared outbound transport independently of
	// the per-item drain delay
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
}

// SchedulerConfig controls the host-side probe cadence
type SchedulerConfig struct {
	Schedule string `toml:"schedule" yaml:"schedule" validate:"required"`
}

// NewDefaultConfig returns the built-in defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/colloquy",
				ResetOnStartup: false,
			},
		},
		Harvester: HarvesterConfig{
			BaseURL:           "https://chatgpt.com",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			SyncPeriod:        5 * time.Minute,  // Gate: at most one cycle per period
			RequestDelay:      10 * time.Second, // Applied before every conversation fetch, including the first
			RequestTimeout:    30 * time.Second,
			PageSize:          28,
			RequestsPerSecond: 1,
		},
		Scheduler: SchedulerConfig{
			Schedule: "*/1 * * * *", // Probe every minute; the sync gate governs actual cadence
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. Files ending in .yaml/.yml are parsed as
// YAML, everything else as TOML.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLOQUY_ENV"); env != "" {
		config.Environment = env
	}
	if level := os.Getenv("COLLOQUY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("COLLOQUY_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if baseURL := os.Getenv("COLLOQUY_BASE_URL"); baseURL != "" {
		config.Harvester.BaseURL = baseURL
	}
	if period := os.Getenv("COLLOQUY_SYNC_PERIOD"); period != "" {
		if d, err := time.ParseDuration(period); err == nil {
			config.Harvester.SyncPeriod = d
		}
	}
	if delay := os.Getenv("COLLOQUY_REQUEST_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Harvester.RequestDelay = d
		}
	}
	if schedule := os.Getenv("COLLOQUY_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// Validate checks config constraints; returns a field-level error on the
// first violation
func Validate(config *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsProduction returns true when running with production settings
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
