package event

import (
	"strings"

	"github.com/dshills/gpupulse/internal/event/kind"
)

// Common filter predicates for event subscription.

// FilterBySource creates a filter that only allows events from the specified source.
func FilterBySource(source string) FilterFunc {
	return func(event any) bool {
		if ev, ok := event.(Event); ok {
			return ev.EventMetadata().Source == source
		}
		return false
	}
}

// FilterBySourcePrefix creates a filter that only allows events from sources starting with prefix.
func FilterBySourcePrefix(prefix string) FilterFunc {
	return func(event any) bool {
		ev, ok := event.(Event)
		if !ok {
			return false
		}
		source := ev.EventMetadata().Source
		return source != "" && strings.HasPrefix(source, prefix)
	}
}

// FilterBySources creates a filter that only allows events from one of the specified sources.
func FilterBySources(sources ...string) FilterFunc {
	sourceSet := make(map[string]bool, len(sources))
	for _, s := range sources {
		sourceSet[s] = true
	}
	return func(event any) bool {
		if ev, ok := event.(Event); ok {
			return sourceSet[ev.EventMetadata().Source]
		}
		return false
	}
}

// FilterExcludeSource creates a filter that excludes events from the specified source.
func FilterExcludeSource(source string) FilterFunc {
	return func(event any) bool {
		if ev, ok := event.(Event); ok {
			return ev.EventMetadata().Source != source
		}
		return true
	}
}

// FilterByKind creates a filter that only allows events of the given kind
// or its descendants. Useful when subscribing to a broad ancestor but
// wanting finer-grained control per handler.
func FilterByKind(k kind.Kind) FilterFunc {
	return func(event any) bool {
		ev, ok := event.(Event)
		if !ok {
			return false
		}
		return ev.EventKind().IsDescendantOf(k)
	}
}

// FilterByKindPrefix creates a filter for events whose kind starts with prefix.
func FilterByKindPrefix(prefix string) FilterFunc {
	return func(event any) bool {
		ev, ok := event.(Event)
		if !ok {
			return false
		}
		return strings.HasPrefix(ev.EventKind().String(), prefix)
	}
}

// FilterExcludeKind creates a filter that excludes the given kind and its descendants.
func FilterExcludeKind(k kind.Kind) FilterFunc {
	return func(event any) bool {
		ev, ok := event.(Event)
		if !ok {
			return true
		}
		return !ev.EventKind().IsDescendantOf(k)
	}
}

// FilterByCorrelation creates a filter that only allows events with the specified correlation ID.
func FilterByCorrelation(correlationID string) FilterFunc {
	return func(event any) bool {
		if ev, ok := event.(Event); ok {
			return ev.EventMetadata().CorrelationID == correlationID
		}
		return false
	}
}

// FilterPayload creates a filter based on the event itself or an envelope payload.
// The predicate receives the typed value and returns true if the event should be delivered.
func FilterPayload[T any](predicate func(payload T) bool) FilterFunc {
	return func(event any) bool {
		// Try the event directly
		if payload, ok := event.(T); ok {
			return predicate(payload)
		}
		// Try an envelope's payload
		if env, ok := event.(Envelope); ok {
			if payload, ok := env.Payload.(T); ok {
				return predicate(payload)
			}
		}
		return false
	}
}

// FilterByDevice creates a filter for events related to a specific GPU device.
// It checks for a device index in the payload, either through the
// deviceIndexer interface or a "device" key in map payloads.
func FilterByDevice(index int) FilterFunc {
	return func(event any) bool {
		switch e := event.(type) {
		case Envelope:
			return checkDevice(e.Payload, index)
		default:
			return checkDevice(event, index)
		}
	}
}

// checkDevice checks if the payload identifies the target device index.
func checkDevice(payload any, target int) bool {
	// Check for map[string]any with a device key
	if m, ok := payload.(map[string]any); ok {
		switch v := m["device"].(type) {
		case int:
			return v == target
		case float64:
			// JSON-decoded numbers arrive as float64
			return int(v) == target
		}
		return false
	}

	// Check for struct with a device index via interface
	type deviceIndexer interface {
		DeviceIndex() int
	}
	if d, ok := payload.(deviceIndexer); ok {
		return d.DeviceIndex() == target
	}

	return false
}

// FilterAnd combines multiple filters with AND logic.
// All filters must pass for the event to be delivered.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(event any) bool {
		for _, f := range filters {
			if !f(event) {
				return false
			}
		}
		return true
	}
}

// FilterOr combines multiple filters with OR logic.
// At least one filter must pass for the event to be delivered.
func FilterOr(filters ...FilterFunc) FilterFunc {
	return func(event any) bool {
		for _, f := range filters {
			if f(event) {
				return true
			}
		}
		return false
	}
}

// FilterNot negates a filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(event any) bool {
		return !filter(event)
	}
}

// FilterAll allows all events (no filtering).
func FilterAll() FilterFunc {
	return func(event any) bool {
		return true
	}
}

// FilterNone blocks all events.
func FilterNone() FilterFunc {
	return func(event any) bool {
		return false
	}
}
