// Package config provides unified configuration loading for the CV extractor.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upload        UploadConfig        `yaml:"upload"`
	Scratch       ScratchConfig       `yaml:"scratch"`
	Workers       WorkersConfig       `yaml:"workers"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// UploadConfig holds upload validation settings.
type UploadConfig struct {
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
	AcceptedMime string `yaml:"accepted_mime"`
}

// ScratchConfig holds temp-file settings.
type ScratchConfig struct {
	Dir string `yaml:"dir"` // empty means the system temp directory
}

// WorkersConfig holds external worker settings.
type WorkersConfig struct {
	Extraction    WorkerConfig  `yaml:"extraction"`
	Anonymization WorkerConfig  `yaml:"anonymization"`
	Timeout       time.Duration `yaml:"timeout"`
}

// WorkerConfig identifies one external worker command.
type WorkerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Upload: UploadConfig{
			MaxSizeBytes: 5 * 1024 * 1024,
			AcceptedMime: "application/pdf",
		},
		Scratch: ScratchConfig{
			Dir: "",
		},
		Workers: WorkersConfig{
			Extraction: WorkerConfig{
				Command: "python3",
				Args:    []string{"scripts/extract_text.py"},
			},
			Anonymization: WorkerConfig{
				Command: "python3",
				Args:    []string{"scripts/anonymize_personal_info.py"},
			},
			Timeout: 2 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Upload.MaxSizeBytes < 1 {
		return fmt.Errorf("max_size_bytes must be positive, got %d", c.Upload.MaxSizeBytes)
	}

	if c.Upload.AcceptedMime == "" {
		return fmt.Errorf("accepted_mime must not be empty")
	}

	if c.Workers.Extraction.Command == "" {
		return fmt.Errorf("extraction worker command must not be empty")
	}

	if c.Workers.Anonymization.Command == "" {
		return fmt.Errorf("anonymization worker command must not be empty")
	}

	if c.Workers.Timeout <= 0 {
		return fmt.Errorf("worker timeout must be positive, got %v", c.Workers.Timeout)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("UPLOAD_MAX_SIZE_BYTES"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Upload.MaxSizeBytes = size
		}
	}

	if v := os.Getenv("SCRATCH_DIR"); v != "" {
		cfg.Scratch.Dir = v
	}

	if v := os.Getenv("EXTRACTION_WORKER"); v != "" {
		cfg.Workers.Extraction = parseWorkerEnv(v)
	}

	if v := os.Getenv("ANONYMIZATION_WORKER"); v != "" {
		cfg.Workers.Anonymization = parseWorkerEnv(v)
	}

	if v := os.Getenv("WORKER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Workers.Timeout = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// parseWorkerEnv splits a space-separated worker command line, e.g.
// "python3 scripts/extract_text.py".
func parseWorkerEnv(v string) WorkerConfig {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return WorkerConfig{}
	}
	return WorkerConfig{Command: fields[0], Args: fields[1:]}
}
