package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration that unmarshals from TOML strings like "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// AsDuration returns the value as a time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Config is the monitor's full configuration.
type Config struct {
	Logging   LoggingConfig     `toml:"logging"`
	Telemetry TelemetryConfig   `toml:"telemetry"`
	Pool      PoolConfig        `toml:"pool"`
	Bus       BusConfig         `toml:"bus"`
	Bridge    BridgeConfig      `toml:"bridge"`
	Alerts    []AlertRuleConfig `toml:"alerts"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `toml:"development"`
}

// TelemetryConfig configures the GPU poller.
type TelemetryConfig struct {
	// Interval is the sampling cadence.
	Interval Duration `toml:"interval"`

	// Devices is the number of simulated devices.
	Devices int `toml:"devices"`

	// Seed seeds the simulated source. Zero picks a time-based seed.
	Seed int64 `toml:"seed"`
}

// PoolConfig configures the shared CPU pool.
type PoolConfig struct {
	// Workers is the pool capacity. Zero means one worker per CPU.
	Workers int `toml:"workers"`

	// MaxBlocking bounds callers waiting for a free worker. Zero keeps
	// the pool nonblocking: a full pool rejects instead of queueing.
	MaxBlocking int `toml:"max_blocking"`
}

// BusConfig configures the event bus's async dispatcher.
type BusConfig struct {
	// QueueSize is the async dispatch queue capacity.
	QueueSize int `toml:"queue_size"`

	// Workers is the number of async dispatch workers.
	Workers int `toml:"workers"`
}

// BridgeConfig configures the legacy JSON bridge.
type BridgeConfig struct {
	// Enabled turns the bridge on.
	Enabled bool `toml:"enabled"`

	// Channel is the name-channel legacy producers publish on.
	Channel string `toml:"channel"`
}

// AlertRuleConfig declares one alert rule. A rule is either a threshold
// (metric, comparison, bound) or a Lua script; Script wins when both are set.
type AlertRuleConfig struct {
	// Name identifies the rule in raised alerts.
	Name string `toml:"name"`

	// Metric names the sampled metric a threshold rule evaluates.
	Metric string `toml:"metric"`

	// Comparison is one of above, below, at_least, at_most.
	Comparison string `toml:"comparison"`

	// Bound is the threshold value.
	Bound float64 `toml:"bound"`

	// Severity is one of info, warning, critical. Empty means warning.
	Severity string `toml:"severity"`

	// Device scopes the rule to one device. Nil means every device.
	Device *int `toml:"device"`

	// Script is an inline Lua predicate defining evaluate(sample).
	Script string `toml:"script"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Interval: Duration(time.Second),
			Devices:  2,
		},
		Bus: BusConfig{
			QueueSize: 256,
			Workers:   4,
		},
		Bridge: BridgeConfig{
			Enabled: true,
			Channel: "gpu-metrics",
		},
	}
}

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and reports every problem found.
func (c Config) Validate() error {
	var errs error

	if !logLevels[c.Logging.Level] {
		errs = multierr.Append(errs, fmt.Errorf("%w: logging.level %q (want debug, info, warn or error)", ErrInvalidConfig, c.Logging.Level))
	}
	if c.Telemetry.Interval.AsDuration() < 10*time.Millisecond {
		errs = multierr.Append(errs, fmt.Errorf("%w: telemetry.interval %s is below 10ms", ErrInvalidConfig, c.Telemetry.Interval.AsDuration()))
	}
	if c.Telemetry.Devices < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: telemetry.devices %d (want at least 1)", ErrInvalidConfig, c.Telemetry.Devices))
	}
	if c.Pool.Workers < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: pool.workers %d is negative", ErrInvalidConfig, c.Pool.Workers))
	}
	if c.Pool.MaxBlocking < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: pool.max_blocking %d is negative", ErrInvalidConfig, c.Pool.MaxBlocking))
	}
	if c.Bus.QueueSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: bus.queue_size %d (want at least 1)", ErrInvalidConfig, c.Bus.QueueSize))
	}
	if c.Bus.Workers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: bus.workers %d (want at least 1)", ErrInvalidConfig, c.Bus.Workers))
	}
	if c.Bridge.Enabled && c.Bridge.Channel == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: bridge.channel is empty with the bridge enabled", ErrInvalidConfig))
	}

	for i, rule := range c.Alerts {
		if rule.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: alerts[%d] has no name", ErrInvalidConfig, i))
		}
		if rule.Script == "" && rule.Metric == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: alerts[%d] %q has neither a metric nor a script", ErrInvalidConfig, i, rule.Name))
		}
		if rule.Script == "" && (math.IsNaN(rule.Bound) || math.IsInf(rule.Bound, 0)) {
			errs = multierr.Append(errs, fmt.Errorf("%w: alerts[%d] %q bound is not finite", ErrInvalidConfig, i, rule.Name))
		}
		if rule.Device != nil && *rule.Device < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%w: alerts[%d] %q device %d is negative", ErrInvalidConfig, i, rule.Name, *rule.Device))
		}
	}

	return errs
}

// Flatten converts a nested configuration map into dot-notation keys.
// Nested maps recurse; arrays and scalars are stored whole under their key.
func Flatten(m map[string]any) map[string]any {
	flat := make(map[string]any)
	flattenInto(flat, "", m)
	return flat
}

func flattenInto(dst map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(dst, key, nested)
			continue
		}
		dst[key] = v
	}
}
