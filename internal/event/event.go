package event

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/dshills/gpupulse/internal/event/kind"
)

// SourceSystem is the source recorded on events whose origin was not set.
const SourceSystem = "system"

// Event is implemented by everything published on the typed channel.
// Concrete event types are structs that embed Base and report their own
// kind. Events are immutable once created.
type Event interface {
	// EventKind returns the hierarchical kind of the event.
	EventKind() kind.Kind

	// EventMetadata returns the event's metadata.
	EventMetadata() Metadata
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created. time.Now carries the
	// monotonic reading, so ordering comparisons are safe.
	Timestamp time.Time

	// Source identifies the component that published the event.
	Source string

	// CorrelationID links related events (e.g., a config change and the
	// replan it triggered).
	CorrelationID string
}

// Base is the embeddable metadata carrier for concrete event types.
// Embedding Base provides EventMetadata; the concrete type provides
// EventKind.
type Base struct {
	Meta Metadata
}

// NewBase creates event metadata stamped with the current time.
// An empty source defaults to SourceSystem.
func NewBase(source string) Base {
	if source == "" {
		source = SourceSystem
	}
	return Base{
		Meta: Metadata{
			ID:        generateID(),
			Timestamp: timeNow(),
			Source:    source,
		},
	}
}

// EventMetadata returns the event's metadata.
func (b Base) EventMetadata() Metadata {
	return b.Meta
}

// WithCorrelation returns a copy of the base with a correlation ID set.
func (b Base) WithCorrelation(correlationID string) Base {
	b.Meta.CorrelationID = correlationID
	return b
}

// Envelope wraps an arbitrary payload as an event. It is the carrier for
// field-map publishing and for payloads bridged in from untyped channels.
type Envelope struct {
	// Kind is the event kind.
	Kind kind.Kind

	// Payload is the type-erased event payload.
	Payload any

	// Meta is the event metadata.
	Meta Metadata
}

// EventKind returns the envelope's kind.
func (e Envelope) EventKind() kind.Kind {
	return e.Kind
}

// EventMetadata returns the envelope's metadata.
func (e Envelope) EventMetadata() Metadata {
	return e.Meta
}

// NewEnvelope creates an envelope for the given kind and payload.
func NewEnvelope(k kind.Kind, payload any, source string) Envelope {
	if source == "" {
		source = SourceSystem
	}
	return Envelope{
		Kind:    k,
		Payload: payload,
		Meta: Metadata{
			ID:        generateID(),
			Timestamp: timeNow(),
			Source:    source,
		},
	}
}

// generateID generates a unique event ID.
func generateID() string {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
