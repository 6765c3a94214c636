package dispatch

import (
	"context"
	"sync/atomic"
	"time"
)

// Runner submits a unit of work to a bounded CPU worker pool and blocks
// until the unit has completed. It is the boundary to the resource
// manager: implementations surface pool saturation or shutdown as an
// error instead of running the unit.
type Runner interface {
	RunOnCPU(ctx context.Context, fn func()) error
}

// IsolatedDispatcher runs whole dispatch units on a Runner so event
// processing stays off goroutines that contend with GPU-bound work.
// The unit itself is opaque: the caller assembles resolution and
// invocation into a single closure, keeping one copy of that logic for
// every execution context.
type IsolatedDispatcher struct {
	runner Runner

	// Stats
	submitted   atomic.Uint64
	completed   atomic.Uint64
	rejected    atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewIsolatedDispatcher creates a dispatcher that delegates units to the
// given runner.
func NewIsolatedDispatcher(r Runner) *IsolatedDispatcher {
	return &IsolatedDispatcher{runner: r}
}

// Dispatch submits the unit to the runner and blocks until it completes.
// The runner's error is returned unchanged so callers can distinguish
// pool saturation from shutdown; in either case the unit never ran.
func (d *IsolatedDispatcher) Dispatch(ctx context.Context, unit func()) error {
	d.submitted.Add(1)
	start := time.Now()

	err := d.runner.RunOnCPU(ctx, unit)

	d.totalTimeNs.Add(time.Since(start).Nanoseconds())
	if err != nil {
		d.rejected.Add(1)
		return err
	}

	d.completed.Add(1)
	return nil
}

// Stats returns dispatcher statistics.
func (d *IsolatedDispatcher) Stats() IsolatedDispatcherStats {
	return IsolatedDispatcherStats{
		Submitted:     d.submitted.Load(),
		Completed:     d.completed.Load(),
		Rejected:      d.rejected.Load(),
		TotalDuration: time.Duration(d.totalTimeNs.Load()),
	}
}

// IsolatedDispatcherStats contains statistics for an isolated dispatcher.
type IsolatedDispatcherStats struct {
	// Submitted is the total number of units handed to the runner.
	Submitted uint64

	// Completed is the number of units that ran to completion.
	Completed uint64

	// Rejected is the number of units the runner refused or abandoned.
	Rejected uint64

	// TotalDuration is the cumulative wall time spent waiting on units.
	TotalDuration time.Duration
}
