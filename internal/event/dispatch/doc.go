// Package dispatch provides the execution contexts for the event bus.
//
// Three dispatchers cover the bus's delivery disciplines:
//
//   - SyncDispatcher: executes handlers inline on the calling goroutine.
//     Used for control-plane events where the publisher accepts the
//     latency of its subscribers (configuration changes, plan results).
//
//   - AsyncDispatcher: executes handlers on a bounded worker pool fed by
//     a bounded queue. Used for fire-and-forget publishes and for
//     subscriptions that must never run on the publisher's goroutine.
//     A full queue rejects work with ErrQueueFull instead of growing.
//
//   - IsolatedDispatcher: hands a whole dispatch unit to a Runner (the
//     resource manager's CPU pool) and blocks until it completes. Used
//     for telemetry processing that must stay off goroutines contending
//     with GPU-bound work. Pool saturation surfaces as the runner's
//     error; the unit is never silently dropped.
//
// # Panic Recovery
//
// Every handler execution is individually wrapped: a panicking handler
// is recovered, reported through the PanicHandler callback with its
// stack, and never takes down the publisher, a worker goroutine, or the
// handlers that follow it.
//
// # Deadlines
//
// Dispatchers impose no deadline. A handler that has started runs to
// completion; the context is checked once before execution and is
// otherwise the handler's to interpret.
package dispatch
