// Package resource manages the bounded CPU worker pool shared by the
// monitoring pipeline.
//
// GPU-bound work is latency sensitive, so everything else competes for
// a fixed slice of CPU instead of spawning goroutines freely. The
// Manager wraps a worker pool with a synchronous submit-and-wait
// surface:
//
//	mgr, err := resource.NewManager(resource.WithWorkers(4))
//	...
//	err = mgr.RunOnCPU(ctx, func() { process(sample) })
//
// RunOnCPU blocks until the closure has finished. When the pool cannot
// take the work, the call fails fast with ErrPoolSaturated (or
// ErrPoolClosed after shutdown) and the closure never runs, so callers
// can decide between dropping, retrying, and propagating.
//
// The event bus consumes the Manager as its isolated-publish runner;
// the telemetry poller pushes sample processing through it directly.
package resource
