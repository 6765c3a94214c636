// Package event provides the typed priority event bus for gpupulse.
//
// The bus is the monitor's internal backbone - a process-local
// publish/subscribe dispatcher connecting telemetry producers, analyzers,
// and consumers (alerting, state synchronization) without direct
// dependencies between them.
//
// # Event Kinds
//
// Events are tagged with hierarchical kinds using dot notation:
//
//	telemetry.gpu    - A GPU metrics sample was captured
//	config.changed   - A configuration key was modified
//	plan.split       - The analyzer produced a split plan
//	alert.raised     - An alert rule fired
//
// The hierarchy is static: ancestry is the chain of dot-prefixes, and a
// subscription on an ancestor kind receives every descendant event. A
// subscription on kind.Any receives everything published on the typed
// channel. There is no wildcard syntax beyond the root; resolution is a
// fixed prefix walk, not pattern matching.
//
// # Priority Ordering
//
// Within one publish call, handlers execute in strict descending priority
// order; equal priorities run in registration order:
//
//   - Critical (400): safety handlers - execute first
//   - High (300): state synchronizers
//   - Normal (200): analyzers, alert rules - default priority
//   - Low (100): metrics, logging - execute last
//
// No ordering holds across separate publish calls.
//
// # Publish Disciplines
//
// One dispatch core runs every snapshot; the three disciplines differ only
// in where the core executes:
//
//   - Publish / PublishSync: the core runs on the caller's goroutine and
//     the call blocks until every handler has run. Subscriptions marked
//     async are handed to the shared background pool instead.
//   - PublishAsync: the whole dispatch is one fire-and-forget task on the
//     bounded background pool. The call blocks only for the enqueue and
//     errors only when the queue is full.
//   - PublishIsolated: the whole resolve+invoke sequence runs as a single
//     unit on the resource manager's CPU pool and the caller blocks until
//     it completes. Pool saturation surfaces as a distinct error.
//
// Handlers run to completion: there is no per-handler deadline, and a
// panic or error in one callback is logged and isolated from the publisher
// and from later handlers.
//
// # Name-Channels
//
// Alongside typed kinds, the bus carries legacy name-channels: exact
// string names with arbitrary payloads, always dispatched synchronously.
// They exist for older tooling; new code subscribes to kinds.
//
// # Locked Kinds
//
// A kind can be closed to further subscription with Lock. Subscribing to a
// locked kind fails with ErrKindLocked; existing subscriptions keep
// receiving events. Name-channels are never locked.
//
// # Basic Usage
//
//	// Create and start the bus
//	bus := event.NewBus(event.WithLogger(logger))
//	if err := bus.Start(); err != nil {
//	    return err
//	}
//	defer bus.Stop(context.Background())
//
//	// Subscribe with options
//	sub, err := bus.SubscribeFunc(
//	    events.KindTelemetryGPU,
//	    handleSample,
//	    event.WithPriority(event.PriorityHigh),
//	)
//
//	// Publish a typed event
//	sample := events.NewGPUSample("telemetry", 0, 85.0, 20480, 24576, 71.0, 250.0, 60.0)
//	if err := bus.Publish(ctx, sample); err != nil {
//	    logger.Warn("publish failed", zap.Error(err))
//	}
//
//	// Remove the subscription by its handle
//	_ = bus.Unsubscribe(sub)
//
// # Thread Safety
//
// The Bus and all public types are safe for concurrent use. The registry
// mutex is never held while a handler runs, so handlers may subscribe,
// unsubscribe, and publish reentrantly. Individual handlers manage their
// own state's thread safety.
//
// # Subpackages
//
//   - events: strongly-typed event definitions and kind constants
//   - kind: the dot-notation kind hierarchy
//   - dispatch: the sync, async, and isolated execution engines
package event
