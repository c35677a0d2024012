// Package config loads streamflow settings from defaults, an optional config
// file, an optional .env file and STREAMFLOW_* environment variables.
package config

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/streamflow/pkg/buffer"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/logging"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// StreamConfig holds the defaults applied to every stream built from a
// Config.
type StreamConfig struct {
	HighWaterMark   int    `mapstructure:"high_water_mark"`
	DefaultEncoding string `mapstructure:"default_encoding"`
	DecodeStrings   bool   `mapstructure:"decode_strings"`
	AllowHalfOpen   bool   `mapstructure:"allow_half_open"`
	AutoDestroy     bool   `mapstructure:"auto_destroy"`
	EmitClose       bool   `mapstructure:"emit_close"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	Namespace string            `mapstructure:"namespace"`
	Labels    map[string]string `mapstructure:"labels"`
}

// Config is the top-level streamflow configuration.
type Config struct {
	Name    string         `mapstructure:"name"`
	Stream  StreamConfig   `mapstructure:"stream"`
	Log     logging.Config `mapstructure:"log"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	sc := stream.DefaultConfig()
	return Config{
		Name: "streamflow",
		Stream: StreamConfig{
			DefaultEncoding: string(sc.DefaultEncoding),
			DecodeStrings:   sc.DecodeStrings,
			AllowHalfOpen:   sc.AllowHalfOpen,
			AutoDestroy:     sc.AutoDestroy,
			EmitClose:       sc.EmitClose,
		},
		Log: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Namespace: metrics.DefaultNamespace,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	const module = "config"
	if err := validation.ValidateNonEmpty(module, "Name", c.Name); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(module, "Stream.HighWaterMark", c.Stream.HighWaterMark); err != nil {
		return err
	}
	return validation.ValidateEncoding(module, "Stream.DefaultEncoding", c.Stream.DefaultEncoding)
}

// StreamDefaults returns a stream.Config carrying the configured defaults.
// reg is attached as the metrics sink; pass nil to leave streams
// uninstrumented.
func (c Config) StreamDefaults(reg *metrics.Registry) stream.Config {
	sc := stream.DefaultConfig()
	sc.HighWaterMark = c.Stream.HighWaterMark
	if c.Stream.DefaultEncoding != "" {
		sc.DefaultEncoding = buffer.Encoding(c.Stream.DefaultEncoding)
	}
	sc.DecodeStrings = c.Stream.DecodeStrings
	sc.AllowHalfOpen = c.Stream.AllowHalfOpen
	sc.AutoDestroy = c.Stream.AutoDestroy
	sc.EmitClose = c.Stream.EmitClose
	sc.Metrics = reg
	return sc
}

// MetricsRegistry registers the stream metrics on reg, or returns nil when
// metrics are disabled. A nil reg with the default namespace and no labels
// shares the process-wide metrics.Default registry.
func (c Config) MetricsRegistry(reg prometheus.Registerer) *metrics.Registry {
	if !c.Metrics.Enabled {
		return nil
	}
	if reg == nil && len(c.Metrics.Labels) == 0 &&
		(c.Metrics.Namespace == "" || c.Metrics.Namespace == metrics.DefaultNamespace) {
		return metrics.Default()
	}
	return metrics.NewRegistryWithConfig(metrics.Config{
		Enabled:   c.Metrics.Enabled,
		Registry:  reg,
		Namespace: c.Metrics.Namespace,
		Labels:    prometheus.Labels(c.Metrics.Labels),
	})
}

// NewLoop creates an event loop logging through the configured logger.
func (c Config) NewLoop() *eventloop.Loop {
	return eventloop.NewWithConfig(eventloop.Config{
		Logger: logging.New(c.Log),
		Name:   c.Name,
	})
}
