package event

import (
	"context"
	"sync/atomic"

	"github.com/dshills/gpupulse/internal/event/kind"
)

// NamePublisher is the surface expected by legacy integrations: a
// string-named channel taking an arbitrary payload, no context, no error.
type NamePublisher interface {
	Publish(name string, payload any)
}

// BusAdapter adapts the typed Bus to the NamePublisher interface.
// It lets older tooling keep publishing on name-channels while consumers
// migrate to typed kinds.
type BusAdapter struct {
	bus    Bus
	source string
	closed atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBusAdapter creates a new adapter wrapping the given bus.
// The source parameter identifies the origin of events (e.g., "nvml-shim").
func NewBusAdapter(bus Bus, source string) *BusAdapter {
	ctx, cancel := context.WithCancel(context.Background())
	return &BusAdapter{
		bus:    bus,
		source: source,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish implements the NamePublisher interface. Name-channel dispatch is
// synchronous; errors are dropped to match the legacy contract.
func (a *BusAdapter) Publish(name string, payload any) {
	if a.closed.Load() {
		return
	}
	_ = a.bus.PublishName(a.ctx, name, payload)
}

// PublishFields publishes a kind-tagged field map on the typed channel,
// stamped with the adapter's source.
func (a *BusAdapter) PublishFields(k kind.Kind, fields map[string]any) error {
	if a.closed.Load() {
		return ErrAdapterClosed
	}
	if !k.IsValid() {
		return ErrInvalidKind
	}
	return a.bus.PublishSync(a.ctx, NewEnvelope(k, fields, a.source))
}

// Close shuts down the adapter.
func (a *BusAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	a.cancel()
	return nil
}

// Bus returns the underlying event bus.
func (a *BusAdapter) Bus() Bus {
	return a.bus
}
