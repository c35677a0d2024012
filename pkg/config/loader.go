package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads, e.g.
// STREAMFLOW_STREAM_HIGH_WATER_MARK or STREAMFLOW_LOG_LEVEL.
const EnvPrefix = "STREAMFLOW"

// LoaderOptions selects the files Load reads. Both are optional.
type LoaderOptions struct {
	// ConfigFile is a YAML, JSON or TOML file layered over the defaults.
	ConfigFile string

	// EnvFile is a .env file whose variables are added to the environment
	// before it is read. Variables already set are not overridden.
	EnvFile string
}

// Load builds a Config from, in increasing precedence: Default(), the config
// file, and STREAMFLOW_* environment variables (including those from the
// .env file). The result is validated.
func Load(opts LoaderOptions) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())

	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", opts.ConfigFile, err)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("name", d.Name)

	v.SetDefault("stream.high_water_mark", d.Stream.HighWaterMark)
	v.SetDefault("stream.default_encoding", d.Stream.DefaultEncoding)
	v.SetDefault("stream.decode_strings", d.Stream.DecodeStrings)
	v.SetDefault("stream.allow_half_open", d.Stream.AllowHalfOpen)
	v.SetDefault("stream.auto_destroy", d.Stream.AutoDestroy)
	v.SetDefault("stream.emit_close", d.Stream.EmitClose)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.no_color", d.Log.NoColor)
	v.SetDefault("log.timestamp", d.Log.Timestamp)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}
