package event

import (
	"context"
	"time"

	"github.com/dshills/gpupulse/internal/event/kind"
)

// timeNow is a variable to allow testing with fixed timestamps.
var timeNow = time.Now

// Publisher provides a simplified API for publishing events.
// It wraps a Bus and stamps envelopes with a fixed source identity.
type Publisher struct {
	bus    Bus
	source string
}

// NewPublisher creates a new Publisher wrapping the given bus.
// The source parameter identifies where events originate (e.g., "telemetry", "config").
func NewPublisher(bus Bus, source string) *Publisher {
	return &Publisher{
		bus:    bus,
		source: source,
	}
}

// Publish sends an event synchronously; the call returns after every
// matched handler has run.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	return p.bus.Publish(ctx, event)
}

// PublishAsync sends an event as one fire-and-forget dispatch unit.
func (p *Publisher) PublishAsync(ctx context.Context, event Event) error {
	return p.bus.PublishAsync(ctx, event)
}

// PublishIsolated dispatches the event on the resource runner's CPU pool,
// blocking until the whole dispatch completes.
func (p *Publisher) PublishIsolated(ctx context.Context, event Event) error {
	return p.bus.PublishIsolated(ctx, event)
}

// PublishFields publishes a kind-tagged field map wrapped in an envelope
// stamped with the publisher's source.
func (p *Publisher) PublishFields(ctx context.Context, k kind.Kind, fields map[string]any) error {
	if !k.IsValid() {
		return ErrInvalidKind
	}
	return p.bus.PublishSync(ctx, NewEnvelope(k, fields, p.source))
}

// PublishName dispatches a payload on a name-channel.
func (p *Publisher) PublishName(ctx context.Context, name string, payload any) error {
	return p.bus.PublishName(ctx, name, payload)
}

// PublishCorrelated publishes an envelope carrying a correlation ID.
// Useful for tracking event chains where one event causes another.
func (p *Publisher) PublishCorrelated(ctx context.Context, k kind.Kind, payload any, correlationID string) error {
	if !k.IsValid() {
		return ErrInvalidKind
	}
	env := NewEnvelope(k, payload, p.source)
	env.Meta.CorrelationID = correlationID
	return p.bus.PublishSync(ctx, env)
}

// Source returns the publisher's source identifier.
func (p *Publisher) Source() string {
	return p.source
}

// Bus returns the underlying bus.
func (p *Publisher) Bus() Bus {
	return p.bus
}
