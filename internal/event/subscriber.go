package event

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/dshills/gpupulse/internal/event/kind"
)

// Subscriber provides a simplified API for subscribing to events.
// It manages multiple subscriptions and provides cleanup on close.
type Subscriber struct {
	bus           Bus
	subscriptions []Subscription
	mu            sync.Mutex
	closed        bool
}

// NewSubscriber creates a new Subscriber wrapping the given bus.
func NewSubscriber(bus Bus) *Subscriber {
	return &Subscriber{
		bus:           bus,
		subscriptions: make([]Subscription, 0),
	}
}

// Subscribe creates a subscription for the given kind.
// The subscription is tracked for cleanup when Close is called.
func (s *Subscriber) Subscribe(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSubscriberClosed
	}

	sub, err := s.bus.Subscribe(k, handler, opts...)
	if err != nil {
		return nil, err
	}

	s.subscriptions = append(s.subscriptions, sub)
	return sub, nil
}

// SubscribeFunc creates a subscription with a function handler.
func (s *Subscriber) SubscribeFunc(k kind.Kind, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	return s.Subscribe(k, fn, opts...)
}

// SubscribeName creates a subscription on a name-channel.
func (s *Subscriber) SubscribeName(name string, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSubscriberClosed
	}

	sub, err := s.bus.SubscribeName(name, handler, opts...)
	if err != nil {
		return nil, err
	}

	s.subscriptions = append(s.subscriptions, sub)
	return sub, nil
}

// SubscribeNameFunc creates a name-channel subscription with a function handler.
func (s *Subscriber) SubscribeNameFunc(name string, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	return s.SubscribeName(name, fn, opts...)
}

// SubscribeTyped creates a type-safe subscription for a concrete event type.
// The handler is only called for events that match the type.
func SubscribeTyped[T any](s *Subscriber, k kind.Kind, handler TypedHandlerFunc[T], opts ...SubscriptionOption) (Subscription, error) {
	return s.Subscribe(k, AsHandlerFunc(handler), opts...)
}

// SubscribePayload creates a subscription that extracts an envelope payload
// of the given type and handles it directly.
func SubscribePayload[T any](s *Subscriber, k kind.Kind, handler func(ctx context.Context, payload T) error, opts ...SubscriptionOption) (Subscription, error) {
	wrappedHandler := HandlerFunc(func(ctx context.Context, event any) error {
		// Try the event directly
		if payload, ok := event.(T); ok {
			return handler(ctx, payload)
		}
		// Try an envelope's payload
		if env, ok := event.(Envelope); ok {
			if payload, ok := env.Payload.(T); ok {
				return handler(ctx, payload)
			}
		}
		// Type mismatch - skip silently
		return nil
	})
	return s.Subscribe(k, wrappedHandler, opts...)
}

// SubscribeOnce creates a one-time subscription that auto-cancels after the first event.
func (s *Subscriber) SubscribeOnce(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	opts = append(opts, WithOnce())
	return s.Subscribe(k, handler, opts...)
}

// SubscribeAsync creates a subscription delivered on the background worker pool.
func (s *Subscriber) SubscribeAsync(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	opts = append(opts, WithAsync())
	return s.Subscribe(k, handler, opts...)
}

// SubscribeCritical creates a critical-priority subscription.
// Critical handlers execute first.
func (s *Subscriber) SubscribeCritical(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	opts = append(opts, WithPriority(PriorityCritical))
	return s.Subscribe(k, handler, opts...)
}

// SubscribeHigh creates a high-priority subscription, intended for state
// synchronizers that must see events before ordinary consumers.
func (s *Subscriber) SubscribeHigh(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	opts = append(opts, WithPriority(PriorityHigh))
	return s.Subscribe(k, handler, opts...)
}

// SubscribeLow creates a low-priority subscription.
// Low-priority handlers execute last and are intended for metrics/logging.
func (s *Subscriber) SubscribeLow(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	opts = append(opts, WithPriority(PriorityLow))
	return s.Subscribe(k, handler, opts...)
}

// SubscribeWithFilter creates a subscription with a filter predicate.
// The handler is only called for events that pass the filter.
func (s *Subscriber) SubscribeWithFilter(k kind.Kind, handler Handler, filter FilterFunc, opts ...SubscriptionOption) (Subscription, error) {
	opts = append(opts, WithFilter(filter))
	return s.Subscribe(k, handler, opts...)
}

// Unsubscribe removes a specific subscription.
func (s *Subscriber) Unsubscribe(sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove from our tracking list
	for i, tracked := range s.subscriptions {
		if tracked.ID() == sub.ID() {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			break
		}
	}

	return s.bus.Unsubscribe(sub)
}

// UnsubscribeAll removes all subscriptions managed by this subscriber.
func (s *Subscriber) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscriptions {
		_ = s.bus.Unsubscribe(sub)
	}
	s.subscriptions = s.subscriptions[:0]
}

// Close cancels all subscriptions and prevents new ones.
// This should be called when the owning component is being shut down.
// Errors from individual unsubscriptions are combined; subscriptions the
// bus already removed (one-shot deliveries) are not errors.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var err error
	for _, sub := range s.subscriptions {
		if uerr := s.bus.Unsubscribe(sub); uerr != nil && !errors.Is(uerr, ErrNotSubscribed) {
			err = multierr.Append(err, uerr)
		}
	}
	s.subscriptions = nil

	return err
}

// Count returns the number of tracked subscriptions.
func (s *Subscriber) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions)
}

// IsClosed returns true if the subscriber has been closed.
func (s *Subscriber) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Bus returns the underlying bus.
func (s *Subscriber) Bus() Bus {
	return s.bus
}

// SubscriptionGroup manages a group of related subscriptions.
// Useful for components that subscribe to multiple kinds and pause or
// cancel them together.
type SubscriptionGroup struct {
	subscriber *Subscriber
	subs       []Subscription
	mu         sync.Mutex
}

// NewSubscriptionGroup creates a new subscription group.
func NewSubscriptionGroup(subscriber *Subscriber) *SubscriptionGroup {
	return &SubscriptionGroup{
		subscriber: subscriber,
		subs:       make([]Subscription, 0),
	}
}

// Add creates a subscription and adds it to the group.
func (g *SubscriptionGroup) Add(k kind.Kind, handler Handler, opts ...SubscriptionOption) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sub, err := g.subscriber.Subscribe(k, handler, opts...)
	if err != nil {
		return err
	}

	g.subs = append(g.subs, sub)
	return nil
}

// AddFunc creates a subscription with a function handler and adds it to the group.
func (g *SubscriptionGroup) AddFunc(k kind.Kind, fn HandlerFunc, opts ...SubscriptionOption) error {
	return g.Add(k, fn, opts...)
}

// PauseAll pauses all subscriptions in the group.
func (g *SubscriptionGroup) PauseAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sub := range g.subs {
		sub.Pause()
	}
}

// ResumeAll resumes all subscriptions in the group.
func (g *SubscriptionGroup) ResumeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sub := range g.subs {
		sub.Resume()
	}
}

// CancelAll cancels all subscriptions in the group.
func (g *SubscriptionGroup) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sub := range g.subs {
		_ = g.subscriber.Unsubscribe(sub)
	}
	g.subs = g.subs[:0]
}

// Count returns the number of subscriptions in the group.
func (g *SubscriptionGroup) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}
