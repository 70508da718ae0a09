package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Database defaults
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected driver sqlite3, got %s", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "ghosted.db" {
		t.Errorf("expected DSN ghosted.db, got %s", cfg.Database.DSN)
	}

	// Snapshot defaults
	if cfg.Snapshot.Path != "ghosted.snapshot.yaml" {
		t.Errorf("expected snapshot path ghosted.snapshot.yaml, got %s", cfg.Snapshot.Path)
	}

	// Timer defaults
	if cfg.Timer.TickInterval != 1*time.Second {
		t.Errorf("expected tick_interval 1s, got %v", cfg.Timer.TickInterval)
	}
	if cfg.Timer.QuoteInterval != 30*time.Second {
		t.Errorf("expected quote_interval 30s, got %v", cfg.Timer.QuoteInterval)
	}
	if cfg.Timer.DefaultTarget != "The One" {
		t.Errorf("expected default_target The One, got %s", cfg.Timer.DefaultTarget)
	}

	// Analyzer defaults
	if cfg.Analyzer.Provider != "keyword" {
		t.Errorf("expected keyword provider, got %s", cfg.Analyzer.Provider)
	}

	// Metrics defaults
	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[database]
dsn = "/var/lib/ghosted/waits.db"

[snapshot]
path = "/var/lib/ghosted/timer.yaml"

[timer]
tick_interval = "500ms"
quote_interval = "1m"
default_target = "Sam"

[analyzer]
provider = "claude"
api_key = "from-file"
max_tokens = 512

[metrics]
enabled = true
port = 9100
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Check overridden values
	if cfg.Database.DSN != "/var/lib/ghosted/waits.db" {
		t.Errorf("expected overridden DSN, got %s", cfg.Database.DSN)
	}
	if cfg.Snapshot.Path != "/var/lib/ghosted/timer.yaml" {
		t.Errorf("expected overridden snapshot path, got %s", cfg.Snapshot.Path)
	}
	if cfg.Timer.TickInterval != 500*time.Millisecond {
		t.Errorf("expected tick_interval 500ms, got %v", cfg.Timer.TickInterval)
	}
	if cfg.Timer.QuoteInterval != time.Minute {
		t.Errorf("expected quote_interval 1m, got %v", cfg.Timer.QuoteInterval)
	}
	if cfg.Timer.DefaultTarget != "Sam" {
		t.Errorf("expected default_target Sam, got %s", cfg.Timer.DefaultTarget)
	}
	if cfg.Analyzer.Provider != "claude" || cfg.Analyzer.APIKey != "from-file" {
		t.Errorf("expected claude analyzer with file key, got %+v", cfg.Analyzer)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9100 {
		t.Errorf("expected metrics enabled on 9100, got %+v", cfg.Metrics)
	}

	// Check default values still present
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected driver default sqlite3, got %s", cfg.Database.Driver)
	}
	if cfg.Timer.SnapshotInterval != 10*time.Second {
		t.Errorf("expected snapshot_interval default 10s, got %v", cfg.Timer.SnapshotInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected loaded config to be valid, got %v", err)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_Malformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[timer\ntick_interval = "), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error for empty config path, got %v", err)
	}

	// Should return defaults
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected default driver, got %s", cfg.Database.Driver)
	}
	if cfg.Analyzer.APIKey != "" {
		t.Errorf("expected no api key, got %s", cfg.Analyzer.APIKey)
	}
}

func TestLoadConfig_EnvOverridesAPIKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := "[analyzer]\nprovider = \"claude\"\napi_key = \"from-file\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(APIKeyEnv, "from-env")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Analyzer.APIKey != "from-env" {
		t.Errorf("expected env api key, got %s", cfg.Analyzer.APIKey)
	}
}

func TestValidate_Success(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"empty driver", func(c *Config) { c.Database.Driver = "" }},
		{"empty DSN", func(c *Config) { c.Database.DSN = "" }},
		{"empty snapshot path", func(c *Config) { c.Snapshot.Path = "" }},
		{"zero tick interval", func(c *Config) { c.Timer.TickInterval = 0 }},
		{"tiny tick interval", func(c *Config) { c.Timer.TickInterval = time.Millisecond }},
		{"snapshot faster than tick", func(c *Config) { c.Timer.SnapshotInterval = 100 * time.Millisecond }},
		{"zero event buffer", func(c *Config) { c.Timer.EventBufferSize = 0 }},
		{"unknown provider", func(c *Config) { c.Analyzer.Provider = "oracle" }},
		{"claude without key", func(c *Config) { c.Analyzer.Provider = "claude" }},
		{"invalid metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 99999 }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "invalid" }},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestValidate_DisabledMetricsIgnoresPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Port = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}
