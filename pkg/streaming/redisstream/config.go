package redisstream

import (
	"time"

	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

const (
	module = "redisstream"

	// EOFField marks the entry that ends a stream.
	EOFField = "eof"
)

// Config holds configuration options for Redis-backed streams.
type Config struct {
	// Field is the entry field holding chunk data.
	// Default: "data"
	Field string

	// MaxLen caps the Redis stream length approximately on every append.
	// Zero leaves it unbounded.
	MaxLen int64

	// StartID is the entry ID the source starts reading after.
	// Default: "0" (the beginning)
	StartID string

	// Count is the maximum number of entries fetched per XREAD.
	// Default: 64
	Count int64

	// Block is how long one XREAD waits for new entries.
	// Default: 100ms
	Block time.Duration

	// Timeout bounds each write command.
	// Default: 5s
	Timeout time.Duration

	// Stream configures the stream side.
	Stream stream.Config
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	cfg := stream.DefaultConfig()
	cfg.Name = module
	return Config{
		Field:   "data",
		StartID: "0",
		Count:   64,
		Block:   100 * time.Millisecond,
		Timeout: 5 * time.Second,
		Stream:  cfg,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidateNonEmpty(module, "Field", c.Field); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(module, "MaxLen", int(c.MaxLen)); err != nil {
		return err
	}
	if err := validation.ValidatePositive(module, "Count", int(c.Count)); err != nil {
		return err
	}
	return c.Stream.Validate()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Field == "" {
		c.Field = def.Field
	}
	if c.StartID == "" {
		c.StartID = def.StartID
	}
	if c.Count <= 0 {
		c.Count = def.Count
	}
	if c.Block <= 0 {
		c.Block = def.Block
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// RedisError represents a failed Redis operation.
type RedisError struct {
	Operation string
	Key       string
	Err       error
}

func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + " " + e.Key + ": " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}
