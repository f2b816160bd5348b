// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Loaded configs are validated with struct tags before use.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds each dispatch shard.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// ShardCount sets the number of dispatch shards and workers.
	ShardCount int `koanf:"shard_count" validate:"min=1"`

	// TickIntervalMS is the host tick period driving deferred verifications.
	TickIntervalMS int `koanf:"tick_interval_ms" validate:"min=1,max=1000"`

	// MaxSuspectsLimit caps GET /suspects?limit.
	MaxSuspectsLimit int `koanf:"max_suspects_limit" validate:"min=1"`

	// LedgerTTLSeconds is how long detections stay in the ledger.
	LedgerTTLSeconds int `koanf:"ledger_ttl_seconds" validate:"min=1"`

	// AlertRatePerSecond and AlertBurst throttle detection alerts per entity.
	AlertRatePerSecond float64 `koanf:"alert_rate_per_second" validate:"gt=0"`
	AlertBurst         int     `koanf:"alert_burst" validate:"min=1"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          4096,
		ShardCount:         runtime.NumCPU(),
		TickIntervalMS:     50,
		MaxSuspectsLimit:   100,
		LedgerTTLSeconds:   600,
		AlertRatePerSecond: 1,
		AlertBurst:         5,
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// TickInterval returns the tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// LedgerTTL returns the ledger retention window.
func (c *Config) LedgerTTL() time.Duration {
	return time.Duration(c.LedgerTTLSeconds) * time.Second
}
