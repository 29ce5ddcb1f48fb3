package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the agent-pay service.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Executor Executor `yaml:"executor"`
	Solvency Solvency `yaml:"solvency"`
	Voice    Voice    `yaml:"voice"`
	Logging  Logging  `yaml:"logging"`
}

// Storage selects and configures the invoice persistence backend.
type Storage struct {
	// Backend is "json" (file-backed map) or "sqlite".
	Backend     string `yaml:"backend"`
	InvoicePath string `yaml:"invoice_path"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Executor holds the endpoint and call policy for the external executor
// service that performs the actual transfers.
type Executor struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	// Stub replaces the remote executor with an in-process stub (demo mode).
	Stub        bool   `yaml:"stub"`
	StubBalance string `yaml:"stub_balance"`
}

// Solvency configures the advisory funds pre-check.
type Solvency struct {
	// ReserveBuffer is added to the requested amount to cover incidental
	// fees, expressed as a decimal string (e.g. "0.1").
	ReserveBuffer string `yaml:"reserve_buffer"`
}

// Voice configures the voice-command creation flow.
type Voice struct {
	DefaultRecipient string `yaml:"default_recipient"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
// A missing file is not an error: environment variables and defaults fully
// specify a runnable configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("INVOICE_DB_PATH"); v != "" {
		cfg.Storage.InvoicePath = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("AGENTPAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("EXECUTOR_BASE_URL"); v != "" {
		cfg.Executor.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyDefaults fills fields that were left unset by file and environment.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "json"
	}
	if cfg.Storage.InvoicePath == "" {
		cfg.Storage.InvoicePath = "invoice_data.json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5050
	}
	if cfg.Executor.BaseURL == "" {
		cfg.Executor.BaseURL = "http://localhost:5001"
	}
	if cfg.Executor.TimeoutSeconds == 0 {
		cfg.Executor.TimeoutSeconds = 10
	}
	if cfg.Solvency.ReserveBuffer == "" {
		cfg.Solvency.ReserveBuffer = "0.1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
