package stream

import (
	"github.com/vnykmshr/streamflow/pkg/buffer"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/metrics"
)

const (
	// DefaultHighWaterMark is the byte-mode buffering threshold.
	DefaultHighWaterMark = 16 * 1024

	// DefaultObjectHighWaterMark is the object-mode buffering threshold,
	// counted in chunks.
	DefaultObjectHighWaterMark = 16
)

// Config holds configuration options for a Stream.
//
// Start from DefaultConfig and override fields: AllowHalfOpen, AutoDestroy,
// EmitClose and DecodeStrings default to true there, and a Config literal
// leaves all four false.
type Config struct {
	// HighWaterMark is the buffering threshold for both sides. Zero selects
	// DefaultHighWaterMark, or DefaultObjectHighWaterMark in object mode.
	HighWaterMark int

	// ReadableHighWaterMark and WritableHighWaterMark override HighWaterMark
	// for one side of a duplex when non-zero.
	ReadableHighWaterMark int
	WritableHighWaterMark int

	// ObjectMode makes both sides carry arbitrary values counted one per
	// chunk instead of bytes.
	ObjectMode bool

	// ReadableObjectMode and WritableObjectMode enable object mode on one
	// side only.
	ReadableObjectMode bool
	WritableObjectMode bool

	// Encoding, when set, makes the readable side yield decoded strings.
	Encoding buffer.Encoding

	// DefaultEncoding is used for string chunks written without an explicit
	// encoding.
	// Default: utf8
	DefaultEncoding buffer.Encoding

	// DecodeStrings converts written strings to []byte before they reach
	// the sink.
	// Default: true
	DecodeStrings bool

	// AllowHalfOpen keeps the writable side open after the readable side
	// ended. When false, readable end ends the writable side.
	// Default: true
	AllowHalfOpen bool

	// AutoDestroy destroys the stream once every side completed cleanly.
	// Default: true
	AutoDestroy bool

	// EmitClose emits "close" after destruction.
	// Default: true
	EmitClose bool

	// Name labels the stream in logs and metrics.
	// Default: the stream kind, e.g. "readable"
	Name string

	// Metrics receives stream counters. Nil disables instrumentation; use
	// metrics.Default() for the process-wide registry.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultEncoding: buffer.UTF8,
		DecodeStrings:   true,
		AllowHalfOpen:   true,
		AutoDestroy:     true,
		EmitClose:       true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	const module = "stream"
	if err := validation.ValidateNonNegative(module, "HighWaterMark", c.HighWaterMark); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(module, "ReadableHighWaterMark", c.ReadableHighWaterMark); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(module, "WritableHighWaterMark", c.WritableHighWaterMark); err != nil {
		return err
	}
	if err := validation.ValidateEncoding(module, "Encoding", string(c.Encoding)); err != nil {
		return err
	}
	return validation.ValidateEncoding(module, "DefaultEncoding", string(c.DefaultEncoding))
}

func (c Config) readableObjectMode() bool {
	return c.ObjectMode || c.ReadableObjectMode
}

func (c Config) writableObjectMode() bool {
	return c.ObjectMode || c.WritableObjectMode
}

func (c Config) highWaterMark(side int, objectMode bool) int {
	if side > 0 {
		return side
	}
	if c.HighWaterMark > 0 {
		return c.HighWaterMark
	}
	if objectMode {
		return DefaultObjectHighWaterMark
	}
	return DefaultHighWaterMark
}
