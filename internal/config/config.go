package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required" yaml:"pipeline"`
	Random   RandomConfig   `mapstructure:"random" yaml:"random"`
	Log      LogConfig      `mapstructure:"log" validate:"required" yaml:"log"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
}

// PipelineConfig contains the shape and pacing of a pipeline run.
type PipelineConfig struct {
	Producers     int           `mapstructure:"producers" validate:"gt=0" yaml:"producers"`
	Consumers     int           `mapstructure:"consumers" validate:"gt=0" yaml:"consumers"`
	QueueCapacity int           `mapstructure:"queue_capacity" validate:"gt=0" yaml:"queue_capacity"`
	Duration      time.Duration `mapstructure:"duration" validate:"gt=0" yaml:"duration"`
	MinPause      time.Duration `mapstructure:"min_pause" validate:"gte=0" yaml:"min_pause"`
	MaxPause      time.Duration `mapstructure:"max_pause" validate:"gtefield=MinPause" yaml:"max_pause"`
	// MaxTasks caps the number of ids issued in a run. Zero means unlimited.
	MaxTasks     uint64  `mapstructure:"max_tasks" yaml:"max_tasks"`
	InitialValue float32 `mapstructure:"initial_value" yaml:"initial_value"`
	Substrate    string  `mapstructure:"substrate" validate:"required,oneof=threads tasks" yaml:"substrate"`
}

// RandomConfig selects how workers draw operations, operands and pauses.
type RandomConfig struct {
	// Seeded makes every run reproducible from Seed.
	Seeded bool   `mapstructure:"seeded" yaml:"seeded"`
	Seed   uint64 `mapstructure:"seed" yaml:"seed"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=json text" yaml:"format"`
}

// StatusConfig controls the optional HTTP status server. An empty Addr
// disables it.
type StatusConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port" yaml:"addr"`
}

// pipelineYAML mirrors PipelineConfig with durations in their string form,
// so shown configuration can be fed back as a config file.
type pipelineYAML struct {
	Producers     int     `yaml:"producers"`
	Consumers     int     `yaml:"consumers"`
	QueueCapacity int     `yaml:"queue_capacity"`
	Duration      string  `yaml:"duration"`
	MinPause      string  `yaml:"min_pause"`
	MaxPause      string  `yaml:"max_pause"`
	MaxTasks      uint64  `yaml:"max_tasks"`
	InitialValue  float32 `yaml:"initial_value"`
	Substrate     string  `yaml:"substrate"`
}

// MarshalYAML implements yaml.Marshaler.
func (p PipelineConfig) MarshalYAML() (interface{}, error) {
	return pipelineYAML{
		Producers:     p.Producers,
		Consumers:     p.Consumers,
		QueueCapacity: p.QueueCapacity,
		Duration:      p.Duration.String(),
		MinPause:      p.MinPause.String(),
		MaxPause:      p.MaxPause.String(),
		MaxTasks:      p.MaxTasks,
		InitialValue:  p.InitialValue,
		Substrate:     p.Substrate,
	}, nil
}
