package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TASKFLOW_PIPELINE_PRODUCERS for pipeline.producers.
const EnvPrefix = "TASKFLOW"

// ConfigFileKey is the viper key holding an explicit config file path.
const ConfigFileKey = "config"

// Default values for every key.
const (
	DefaultProducers     = 5
	DefaultConsumers     = 5
	DefaultQueueCapacity = 100
	DefaultDuration      = 10 * time.Second
	DefaultMinPause      = 100 * time.Millisecond
	DefaultMaxPause      = 1000 * time.Millisecond
	DefaultSubstrate     = "threads"
	DefaultSeed          = 42
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
)

// SetDefaults registers the default value of every key on v, so the keys are
// known to viper even when no file or environment variable sets them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.producers", DefaultProducers)
	v.SetDefault("pipeline.consumers", DefaultConsumers)
	v.SetDefault("pipeline.queue_capacity", DefaultQueueCapacity)
	v.SetDefault("pipeline.duration", DefaultDuration)
	v.SetDefault("pipeline.min_pause", DefaultMinPause)
	v.SetDefault("pipeline.max_pause", DefaultMaxPause)
	v.SetDefault("pipeline.max_tasks", 0)
	v.SetDefault("pipeline.initial_value", 0.0)
	v.SetDefault("pipeline.substrate", DefaultSubstrate)

	v.SetDefault("random.seeded", false)
	v.SetDefault("random.seed", DefaultSeed)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("status.addr", "")
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration through an existing viper instance. Callers
// use it to layer command-line flags bound with BindPFlag on top of the
// environment and file sources.
func LoadWith(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString(ConfigFileKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("taskflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
