package event

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event/dispatch"
	"github.com/dshills/gpupulse/internal/event/kind"
)

// Bus is the central event bus interface. A bus is constructed explicitly
// and injected into producers and consumers; there is no package-level
// instance.
type Bus interface {
	// Publishing. Publish and PublishIsolated block for the dispatch
	// duration; PublishAsync blocks only for the enqueue.
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
	PublishAsync(ctx context.Context, event Event) error
	PublishIsolated(ctx context.Context, event Event) error
	PublishKind(ctx context.Context, k kind.Kind, fields map[string]any) error
	PublishName(ctx context.Context, name string, payload any) error

	// Subscription
	Subscribe(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeFunc(k kind.Kind, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	SubscribeName(name string, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeNameFunc(name string, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error
	Lock(kinds ...kind.Kind)

	// Clear removes every subscription from both channel maps.
	// Intended for tests.
	Clear()

	// Lifecycle
	Start() error
	Stop(ctx context.Context) error

	// Status
	Stats() Stats
	IsRunning() bool
}

// bus is the default Bus implementation.
type bus struct {
	// Subscription management
	registry *Registry

	// Dispatchers. All three publish paths run the same dispatch core;
	// they differ only in where the core executes.
	syncDispatcher  *dispatch.SyncDispatcher
	asyncDispatcher *dispatch.AsyncDispatcher
	isolated        *dispatch.IsolatedDispatcher

	logger *zap.Logger

	// State
	running atomic.Bool

	// Configuration
	config busConfig

	// Stats
	eventsPublished  atomic.Uint64
	eventsDelivered  atomic.Uint64
	eventsDropped    atomic.Uint64
	handlersExecuted atomic.Uint64
	handlerErrors    atomic.Uint64
	handlerPanics    atomic.Uint64
	totalDeliveryNs  atomic.Int64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &bus{
		registry: NewRegistry(),
		logger:   config.logger,
		config:   config,
	}

	// Adapt the bus-level panic hook to the dispatch package's signature.
	// The bus logs panics itself in recordResult; this hook is the
	// caller's extension point.
	dispatchPanicHandler := func(event any, panicValue any, _ []byte) {
		if config.panicHandler != nil {
			config.panicHandler(event, nil, panicValue)
		}
	}

	b.syncDispatcher = dispatch.NewSyncDispatcher(
		dispatch.WithPanicHandler(dispatchPanicHandler),
	)

	b.asyncDispatcher = dispatch.NewAsyncDispatcher(
		dispatch.WithQueueSize(config.asyncQueueSize),
		dispatch.WithWorkerCount(config.asyncWorkerCount),
		dispatch.WithAsyncPanicHandler(dispatchPanicHandler),
		dispatch.WithResultHandler(b.onAsyncResult),
	)

	if config.runner != nil {
		b.isolated = dispatch.NewIsolatedDispatcher(config.runner)
	}

	return b
}

// Start starts the event bus.
func (b *bus) Start() error {
	if b.running.Load() {
		return ErrBusAlreadyRunning
	}
	if err := b.asyncDispatcher.Start(); err != nil {
		return err
	}
	b.running.Store(true)
	b.logger.Info("event bus started",
		zap.Int("async_workers", b.config.asyncWorkerCount),
		zap.Int("async_queue_size", b.config.asyncQueueSize))
	return nil
}

// Stop stops the event bus gracefully.
// It waits for all pending async dispatches to drain or until the context
// is cancelled.
func (b *bus) Stop(ctx context.Context) error {
	if !b.running.Swap(false) {
		return ErrBusNotRunning
	}
	err := b.asyncDispatcher.Stop(ctx)
	b.logger.Info("event bus stopped", zap.Error(err))
	return err
}

// IsRunning returns true if the bus is running.
func (b *bus) IsRunning() bool {
	return b.running.Load()
}

// Publish sends an event synchronously. It is the default publish path:
// the call returns after every matched handler has run.
func (b *bus) Publish(ctx context.Context, event Event) error {
	return b.PublishSync(ctx, event)
}

// PublishSync sends an event synchronously on the caller's goroutine.
// Subscriptions marked async are handed to the background pool instead of
// running inline.
func (b *bus) PublishSync(ctx context.Context, event Event) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	subs := b.registry.MatchActive(event.EventKind())
	if len(subs) == 0 {
		return nil // No subscribers
	}

	b.eventsPublished.Add(1)
	b.deliver(ctx, event, subs, false)
	return nil
}

// PublishAsync queues the whole dispatch as one unit on the background
// pool and returns immediately. Subscriber resolution happens on the
// worker, so the snapshot reflects the registry at execution time, and the
// within-call priority order is preserved because the unit runs its
// handlers inline. An error is returned only when the queue cannot accept
// the unit; from then on delivery is fire-and-forget.
func (b *bus) PublishAsync(ctx context.Context, event Event) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	unit := &dispatchUnit{bus: b, event: event}
	if err := b.asyncDispatcher.Enqueue(ctx, event, unit); err != nil {
		b.eventsDropped.Add(1)
		b.logger.Warn("async publish dropped",
			zap.String("kind", event.EventKind().String()),
			zap.Error(err))
		if errors.Is(err, dispatch.ErrQueueFull) {
			return ErrQueueFull
		}
		return err
	}

	b.eventsPublished.Add(1)
	return nil
}

// PublishIsolated submits the entire resolve+invoke sequence as a single
// unit to the resource runner's CPU pool and blocks until it completes.
// Pool saturation and pool shutdown surface as the runner's own errors,
// never swallowed.
func (b *bus) PublishIsolated(ctx context.Context, event Event) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}
	if err := validateEvent(event); err != nil {
		return err
	}
	if b.isolated == nil {
		return ErrNoRunner
	}

	err := b.isolated.Dispatch(ctx, func() {
		subs := b.registry.MatchActive(event.EventKind())
		if len(subs) == 0 {
			return
		}
		// Async-marked subscriptions still defer to the shared pool so
		// they cannot pin the CPU slot.
		b.deliver(ctx, event, subs, false)
	})
	if err != nil {
		return err
	}

	b.eventsPublished.Add(1)
	return nil
}

// PublishKind constructs an envelope from a kind and a field map, then
// dispatches it synchronously.
func (b *bus) PublishKind(ctx context.Context, k kind.Kind, fields map[string]any) error {
	if !k.IsValid() {
		return ErrInvalidKind
	}
	return b.PublishSync(ctx, NewEnvelope(k, fields, SourceSystem))
}

// PublishName dispatches a payload to a name-channel. Name-channel
// dispatch is always synchronous and follows the same priority-ordered
// invocation contract as kind dispatch.
func (b *bus) PublishName(ctx context.Context, name string, payload any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}
	if name == "" {
		return ErrInvalidName
	}

	subs := b.registry.MatchNameActive(name)
	if len(subs) == 0 {
		return nil // No subscribers
	}

	b.eventsPublished.Add(1)
	b.deliver(ctx, payload, subs, false)
	return nil
}

// Subscribe creates a new subscription for the given kind.
// Subscribing to an ancestor kind receives every descendant event.
// This method is safe to call concurrently.
func (b *bus) Subscribe(k kind.Kind, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !k.IsValid() {
		return nil, ErrInvalidKind
	}

	sub := newSubscription(generateID(), k, handler, opts...)
	if err := b.registry.Add(sub); err != nil {
		b.logger.Debug("subscription rejected",
			zap.String("kind", k.String()),
			zap.Error(err))
		return nil, err
	}

	return sub, nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *bus) SubscribeFunc(k kind.Kind, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	return b.Subscribe(k, fn, opts...)
}

// SubscribeName creates a new subscription on a name-channel.
// Kind locking never applies to name-channels.
func (b *bus) SubscribeName(name string, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if name == "" {
		return nil, ErrInvalidName
	}

	sub := newNameSubscription(generateID(), name, handler, opts...)
	b.registry.AddName(sub)

	return sub, nil
}

// SubscribeNameFunc is a convenience method for name subscriptions with a
// function handler.
func (b *bus) SubscribeNameFunc(name string, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	return b.SubscribeName(name, fn, opts...)
}

// Unsubscribe removes a subscription.
// This method is safe to call concurrently.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}

	sub.Cancel()
	removed := b.registry.Remove(sub.ID()) // Registry is thread-safe

	if !removed {
		b.logger.Debug("unsubscribe of unknown subscription",
			zap.String("subscription", sub.ID()))
		return ErrNotSubscribed
	}

	return nil
}

// Lock closes the given kinds to further subscription. Existing
// subscriptions keep receiving events.
func (b *bus) Lock(kinds ...kind.Kind) {
	b.registry.Lock(kinds...)
}

// Clear removes every subscription. Intended for tests.
func (b *bus) Clear() {
	b.registry.Clear()
}

// Stats returns current bus statistics.
func (b *bus) Stats() Stats {
	handlersExecuted := b.handlersExecuted.Load()

	var avgNs int64
	if handlersExecuted > 0 {
		avgNs = b.totalDeliveryNs.Load() / int64(handlersExecuted)
	}

	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsDelivered:   b.eventsDelivered.Load(),
		EventsDropped:     b.eventsDropped.Load(),
		HandlersExecuted:  handlersExecuted,
		HandlerErrors:     b.handlerErrors.Load(),
		HandlerPanics:     b.handlerPanics.Load(),
		AvgDeliveryTimeNs: avgNs,
		ActiveSubscribers: b.registry.CountActive(),
		QueueDepth:        b.asyncDispatcher.QueueDepth(),
	}
}

// deliver runs one dispatch snapshot in order. It is the single dispatch
// core behind all publish paths. inlineAsync controls what happens to
// subscriptions marked async: false defers them to the shared background
// pool, true runs them inline (used when the core itself is already on a
// pool worker, preserving the within-call priority order).
func (b *bus) deliver(ctx context.Context, event any, subs []*subscription, inlineAsync bool) {
	for _, sub := range subs {
		if !sub.ShouldDeliver(event) {
			continue
		}

		if sub.Config().DeliveryMode == DeliveryAsync && !inlineAsync {
			if err := b.asyncDispatcher.Enqueue(ctx, event, boundHandler{sub: sub}); err != nil {
				b.eventsDropped.Add(1)
				b.logger.Warn("async handler dropped",
					zap.String("kind", kindOf(event)),
					zap.String("subscription", sub.ID()),
					zap.Error(err))
			}
			continue
		}

		result := b.syncDispatcher.Dispatch(ctx, event, sub.Handler())
		b.recordResult(sub, event, result)
	}
}

// recordResult accounts for one handler execution and logs failures.
// A failure is isolated to its callback: it is logged with the event kind
// and the subscription identity and never propagates to the publisher or
// to later handlers.
func (b *bus) recordResult(sub *subscription, event any, result dispatch.Result) {
	b.handlersExecuted.Add(1)
	b.totalDeliveryNs.Add(result.Duration.Nanoseconds())

	switch {
	case result.Panicked:
		b.handlerPanics.Add(1)
		b.logger.Error("handler panic",
			zap.String("kind", kindOf(event)),
			zap.String("subscription", sub.ID()),
			zap.Any("panic", result.PanicValue),
			zap.ByteString("stack", result.PanicStack))
	case result.Error != nil:
		b.handlerErrors.Add(1)
		b.logger.Error("handler error",
			zap.String("kind", kindOf(event)),
			zap.String("subscription", sub.ID()),
			zap.Error(result.Error))
	case result.Success:
		b.eventsDelivered.Add(1)
	}

	// Handle one-time subscriptions
	if sub.Config().Once && result.Success {
		sub.Cancel()
		b.registry.Remove(sub.ID())
	}
}

// onAsyncResult attributes pool execution outcomes back to the
// subscription that produced them.
func (b *bus) onAsyncResult(event any, handler dispatch.Handler, result dispatch.Result) {
	bh, ok := handler.(boundHandler)
	if !ok {
		// Dispatch units account for their handlers themselves.
		return
	}
	b.recordResult(bh.sub, event, result)
}

// boundHandler ties a subscription to its handler so executions on the
// background pool can be attributed to the right subscription.
type boundHandler struct {
	sub *subscription
}

// Handle implements dispatch.Handler.
func (h boundHandler) Handle(ctx context.Context, event any) error {
	return h.sub.Handler().Handle(ctx, event)
}

// dispatchUnit is one whole fire-and-forget dispatch. Resolution is
// deferred to the worker so the snapshot reflects subscriptions made
// between enqueue and execution.
type dispatchUnit struct {
	bus   *bus
	event Event
}

// Handle implements dispatch.Handler.
func (u *dispatchUnit) Handle(ctx context.Context, _ any) error {
	subs := u.bus.registry.MatchActive(u.event.EventKind())
	if len(subs) == 0 {
		return nil
	}
	u.bus.deliver(ctx, u.event, subs, true)
	return nil
}

// validateEvent rejects nil events and malformed kinds before dispatch.
func validateEvent(event Event) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if !event.EventKind().IsValid() {
		return ErrInvalidKind
	}
	return nil
}

// kindOf extracts the kind tag from an event for logging. Name-channel
// payloads have no kind and yield an empty string.
func kindOf(event any) string {
	if ev, ok := event.(Event); ok {
		return ev.EventKind().String()
	}
	return ""
}
