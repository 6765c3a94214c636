package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultEnvPrefix is prepended to every environment override.
const DefaultEnvPrefix = "GPUPULSE_"

// Loader reads the configuration file and applies environment overrides.
// A missing file is not an error; the defaults apply.
type Loader struct {
	path      string
	envPrefix string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		if prefix != "" {
			l.envPrefix = prefix
		}
	}
}

// NewLoader creates a loader for the given file path.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{
		path:      path,
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the configured file path.
func (l *Loader) Path() string {
	return l.path
}

// Load builds the effective configuration: defaults, then the file,
// then environment overrides, then validation.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply until the file shows up.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", l.path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", l.path, err)
			}
		}
	}

	if err := l.applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envFields maps an environment variable suffix (after the prefix) to the
// setting it overrides.
var envFields = map[string]func(*Config, string) error{
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	},
	"LOG_DEVELOPMENT": func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		c.Logging.Development = b
		return nil
	},
	"TELEMETRY_INTERVAL": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Telemetry.Interval = Duration(d)
		return nil
	},
	"TELEMETRY_DEVICES": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Telemetry.Devices = n
		return nil
	},
	"TELEMETRY_SEED": func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Telemetry.Seed = n
		return nil
	},
	"POOL_WORKERS": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Pool.Workers = n
		return nil
	},
	"POOL_MAX_BLOCKING": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Pool.MaxBlocking = n
		return nil
	},
	"BUS_QUEUE_SIZE": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Bus.QueueSize = n
		return nil
	},
	"BUS_WORKERS": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Bus.Workers = n
		return nil
	},
	"BRIDGE_ENABLED": func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		c.Bridge.Enabled = b
		return nil
	},
	"BRIDGE_CHANNEL": func(c *Config, v string) error {
		c.Bridge.Channel = v
		return nil
	},
}

func (l *Loader) applyEnv(cfg *Config) error {
	for suffix, apply := range envFields {
		v, ok := os.LookupEnv(l.envPrefix + suffix)
		if !ok {
			continue
		}
		if err := apply(cfg, v); err != nil {
			return fmt.Errorf("environment %s%s=%q: %w", l.envPrefix, suffix, v, err)
		}
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// Snapshot renders the effective configuration as flattened dot-notation
// keys, the shape the watcher diffs between reloads.
func Snapshot(cfg Config) (map[string]any, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	return Flatten(m), nil
}
