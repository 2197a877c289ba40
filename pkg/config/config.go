package config

import (
	"fmt"

	"github.com/ajitpratap0/spawnpool/pkg/logger"
	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
)

// Config is the single configuration structure of the spawnpool tool.
// Library users construct pools and spawners with options instead; Config
// only drives the CLI and the simulation harness.
type Config struct {
	// Name identifies the run in logs and traces
	Name string `yaml:"name" json:"name"`

	// Log configures the global zap logger
	Log LogConfig `yaml:"log" json:"log"`

	// Metrics configures the Prometheus pool collector
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures OpenTelemetry spans around simulation frames
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Spawner holds options applied to every spawner the tool builds
	Spawner SpawnerConfig `yaml:"spawner" json:"spawner"`

	// Simulation describes the frame loop workload
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Encoding selects json or console output
	Encoding string `yaml:"encoding" json:"encoding"`
	// Development enables stack traces on errors
	Development bool `yaml:"development" json:"development"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled registers the pool collector
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Namespace prefixes every metric name
	Namespace string `yaml:"namespace" json:"namespace"`
	// ListenAddr serves /metrics when non-empty
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled exports spans to stdout
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName is reported as service.name
	ServiceName string `yaml:"service_name" json:"service_name"`
	// SampleRate controls trace sampling (0.0-1.0)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

// SpawnerConfig contains spawner options.
type SpawnerConfig struct {
	// RootName names the node idle instances are parked under
	RootName string `yaml:"root_name" json:"root_name"`
	// StrictRelease rejects releasing an already free instance
	StrictRelease bool `yaml:"strict_release" json:"strict_release"`
}

// SimulationConfig describes a deterministic spawn/return workload.
type SimulationConfig struct {
	// Frames is the number of frames to run
	Frames int `yaml:"frames" json:"frames"`
	// Prototypes lists the prototypes spawned every frame
	Prototypes []PrototypeConfig `yaml:"prototypes" json:"prototypes"`
}

// PrototypeConfig describes one spawned prototype.
type PrototypeConfig struct {
	// Name of the prototype node
	Name string `yaml:"name" json:"name"`
	// Prewarm is the number of instances allocated up front
	Prewarm int `yaml:"prewarm" json:"prewarm"`
	// SpawnPerFrame is the number of instances spawned each frame
	SpawnPerFrame int `yaml:"spawn_per_frame" json:"spawn_per_frame"`
	// Lifetime is the number of frames an instance stays active
	Lifetime int `yaml:"lifetime" json:"lifetime"`
}

// NewDefault creates a Config with sensible defaults.
//
// Example:
//
//	cfg := config.NewDefault()
//	cfg.Simulation.Frames = 600
func NewDefault() *Config {
	return &Config{
		Name: "spawnpool",
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "spawnpool",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "spawnpool",
			SampleRate:  1.0,
		},
		Spawner: SpawnerConfig{
			RootName: "pool",
		},
		Simulation: SimulationConfig{
			Frames: 120,
			Prototypes: []PrototypeConfig{
				{Name: "Bullet", Prewarm: 16, SpawnPerFrame: 4, Lifetime: 5},
				{Name: "Spark", Prewarm: 0, SpawnPerFrame: 2, Lifetime: 3},
			},
		},
	}
}

// Validate checks required fields and value ranges. The returned error is
// an ErrorTypeConfig error naming the offending field.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("name", "name is required")
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return invalid("metrics.namespace", "namespace is required when metrics are enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return invalid("tracing.sample_rate", "sample_rate must be between 0 and 1")
	}
	if c.Spawner.RootName == "" {
		return invalid("spawner.root_name", "root_name is required")
	}
	if c.Simulation.Frames < 0 {
		return invalid("simulation.frames", "frames cannot be negative")
	}

	seen := make(map[string]bool, len(c.Simulation.Prototypes))
	for i, p := range c.Simulation.Prototypes {
		field := fmt.Sprintf("simulation.prototypes[%d]", i)
		switch {
		case p.Name == "":
			return invalid(field+".name", "prototype name is required")
		case seen[p.Name]:
			return invalid(field+".name", fmt.Sprintf("duplicate prototype %q", p.Name))
		case p.Prewarm < 0:
			return invalid(field+".prewarm", "prewarm cannot be negative")
		case p.SpawnPerFrame < 0:
			return invalid(field+".spawn_per_frame", "spawn_per_frame cannot be negative")
		case p.Lifetime <= 0:
			return invalid(field+".lifetime", "lifetime must be positive")
		}
		seen[p.Name] = true
	}
	return nil
}

// LoggerConfig converts the log section into a logger.Config.
func (l LogConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Encoding:    l.Encoding,
		Development: l.Development,
	}
}

func invalid(field, msg string) error {
	return poolerrors.New(poolerrors.ErrorTypeConfig, msg).WithDetail("field", field)
}
