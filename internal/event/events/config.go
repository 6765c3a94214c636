package events

import (
	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/kind"
)

// Config event kinds.
const (
	// KindConfig is the ancestor of every configuration event.
	KindConfig kind.Kind = "config"

	// KindConfigLoaded is published once after the initial configuration load.
	KindConfigLoaded kind.Kind = "config.loaded"

	// KindConfigChanged is published for each key whose value changed on reload.
	KindConfigChanged kind.Kind = "config.changed"
)

// ConfigLoaded is published once after the initial configuration load.
type ConfigLoaded struct {
	event.Base

	// Path is the file the configuration was loaded from. Empty when
	// running on defaults only.
	Path string

	// Keys is the number of flattened keys in the loaded configuration.
	Keys int
}

// NewConfigLoaded creates a configuration-loaded event.
func NewConfigLoaded(source, path string, keys int) ConfigLoaded {
	return ConfigLoaded{
		Base: event.NewBase(source),
		Path: path,
		Keys: keys,
	}
}

// EventKind returns the event's kind.
func (ConfigLoaded) EventKind() kind.Kind {
	return KindConfigLoaded
}

// ConfigChanged is published when a configuration key changes value.
// A reload that changes several keys publishes one event per key.
type ConfigChanged struct {
	event.Base

	// Key is the dot-notation path to the setting (e.g., "telemetry.interval").
	Key string

	// OldValue is the previous value.
	OldValue any

	// NewValue is the new value.
	NewValue any
}

// NewConfigChanged creates a configuration-change event.
func NewConfigChanged(source, key string, oldValue, newValue any) ConfigChanged {
	return ConfigChanged{
		Base:     event.NewBase(source),
		Key:      key,
		OldValue: oldValue,
		NewValue: newValue,
	}
}

// EventKind returns the event's kind.
func (ConfigChanged) EventKind() kind.Kind {
	return KindConfigChanged
}
