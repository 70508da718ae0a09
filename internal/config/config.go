package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/livinlefevreloca/ghosted/internal/analyzer"
	"github.com/livinlefevreloca/ghosted/internal/db"
	"github.com/livinlefevreloca/ghosted/internal/timer"
)

// APIKeyEnv overrides analyzer.api_key when set
const APIKeyEnv = "GHOSTED_ANTHROPIC_API_KEY"

// Config represents the application configuration
type Config struct {
	Database db.Config       `toml:"database"`
	Snapshot SnapshotConfig  `toml:"snapshot"`
	Timer    timer.Config    `toml:"timer"`
	Analyzer analyzer.Config `toml:"analyzer"`
	Metrics  MetricsConfig   `toml:"metrics"`
	Logging  LoggingConfig   `toml:"logging"`
}

// SnapshotConfig holds crash-recovery snapshot settings
type SnapshotConfig struct {
	Path string `toml:"path" validate:"required"`
}

// MetricsConfig holds metrics/monitoring settings
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver:          "sqlite3",
			DSN:             "ghosted.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 0,
			ConnMaxIdleTime: 0,
			SkipMigrations:  false,
		},
		Snapshot: SnapshotConfig{
			Path: "ghosted.snapshot.yaml",
		},
		Timer:    timer.DefaultConfig(),
		Analyzer: analyzer.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// Parse TOML file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables
// 4. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	applyEnv(config)
	return config, nil
}

func applyEnv(config *Config) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		config.Analyzer.APIKey = key
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Database validation
	if c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s (must be sqlite3)", c.Database.Driver)
	}

	// Timer validation
	if c.Timer.TickInterval < 10*time.Millisecond {
		return fmt.Errorf("timer tick_interval must be at least 10ms")
	}
	if c.Timer.SnapshotInterval < c.Timer.TickInterval {
		return fmt.Errorf("timer snapshot_interval must not be shorter than tick_interval")
	}

	// Analyzer validation
	if c.Analyzer.Provider == analyzer.ProviderClaude && c.Analyzer.APIKey == "" {
		return fmt.Errorf("analyzer provider claude requires api_key or %s", APIKeyEnv)
	}

	// Metrics validation
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics port must be between 1 and 65535")
		}
	}

	return nil
}
