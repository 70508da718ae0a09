package timer

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/livinlefevreloca/ghosted/internal/db"
)

// Config defines the timer's cadences
type Config struct {
	// Display tick, elapsed time is recomputed from the start on every tick
	TickInterval time.Duration `toml:"tick_interval" validate:"gt=0"`

	// Rotating quote cadence, display only
	QuoteInterval time.Duration `toml:"quote_interval" validate:"gt=0"`

	// Minimum time between best-effort snapshot refreshes while running
	SnapshotInterval time.Duration `toml:"snapshot_interval" validate:"gt=0"`

	// Label for waits started without one
	DefaultTarget string `toml:"default_target"`

	// Buffer size of each subscriber channel
	EventBufferSize int `toml:"event_buffer_size" validate:"gt=0"`
}

// DefaultConfig returns the default timer configuration
func DefaultConfig() Config {
	return Config{
		TickInterval:     time.Second,
		QuoteInterval:    30 * time.Second,
		SnapshotInterval: 10 * time.Second,
		DefaultTarget:    db.DefaultTargetName,
		EventBufferSize:  16,
	}
}

var validate = validator.New()

func validateConfig(config Config) error {
	return validate.Struct(config)
}
