package resource

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event/dispatch"
)

// Sentinel errors for the resource package.
var (
	// ErrPoolSaturated is returned when the pool cannot accept more work.
	ErrPoolSaturated = errors.New("cpu pool is saturated")

	// ErrPoolClosed is returned when work is submitted after Close.
	ErrPoolClosed = errors.New("cpu pool is closed")

	// ErrNilTask is returned when a nil function is submitted.
	ErrNilTask = errors.New("task function is nil")
)

// Manager owns the bounded CPU worker pool that keeps event processing
// and telemetry work off goroutines contending with GPU-bound load. It
// is the process-wide arbiter of CPU work: components submit closures
// through RunOnCPU and the pool decides when they run.
type Manager struct {
	pool   *ants.Pool
	logger *zap.Logger

	// Stats
	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
	panics    atomic.Uint64
}

// Manager satisfies the bus's isolated-publish runner contract.
var _ dispatch.Runner = (*Manager)(nil)

// NewManager creates a CPU pool manager. The default pool is sized to
// the machine's CPU count and rejects work immediately when all workers
// are busy; WithMaxBlockingTasks switches it to bounded blocking.
func NewManager(opts ...Option) (*Manager, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{logger: cfg.logger}

	// The pool recovers task panics and routes them here. The worker
	// goroutine is replaced, so a panicking task costs one worker spawn
	// and nothing else.
	userHandler := cfg.panicHandler
	panicHandler := func(v any) {
		m.panics.Add(1)
		if userHandler != nil {
			userHandler(v)
			return
		}
		m.logger.Error("cpu pool task panic",
			zap.Any("panic", v),
			zap.ByteString("stack", debug.Stack()))
	}

	pool, err := ants.NewPool(cfg.workers,
		ants.WithNonblocking(cfg.nonblocking),
		ants.WithMaxBlockingTasks(cfg.maxBlockingTasks),
		ants.WithPanicHandler(panicHandler))
	if err != nil {
		return nil, err
	}

	m.pool = pool
	m.logger.Info("cpu pool started",
		zap.Int("workers", cfg.workers),
		zap.Bool("nonblocking", cfg.nonblocking),
		zap.Int("max_blocking_tasks", cfg.maxBlockingTasks))
	return m, nil
}

// RunOnCPU submits fn to the pool and blocks until it has completed.
// An error return promises fn never ran: the context was already
// cancelled, the pool was saturated, or the pool was closed. After a
// successful submit the call always waits, even if the context is
// cancelled while fn runs.
func (m *Manager) RunOnCPU(ctx context.Context, fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.submitted.Add(1)

	done := make(chan struct{})
	err := m.pool.Submit(func() {
		defer close(done)
		fn()
	})
	if err != nil {
		m.rejected.Add(1)
		switch {
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		case errors.Is(err, ants.ErrPoolOverload):
			return ErrPoolSaturated
		}
		return err
	}

	<-done
	m.completed.Add(1)
	return nil
}

// Resize changes the pool capacity at runtime. Shrinking does not
// interrupt running tasks; the pool converges as they finish.
func (m *Manager) Resize(workers int) {
	if workers <= 0 {
		return
	}
	m.pool.Tune(workers)
	m.logger.Info("cpu pool resized", zap.Int("workers", workers))
}

// Close releases the pool immediately. Submitted tasks that have not
// started are abandoned; RunOnCPU callers waiting on running tasks are
// released when those tasks finish.
func (m *Manager) Close() {
	m.pool.Release()
	m.logger.Info("cpu pool closed")
}

// CloseTimeout releases the pool and waits up to timeout for running
// tasks to finish. Returns ErrPoolClosed if the pool was already
// released.
func (m *Manager) CloseTimeout(timeout time.Duration) error {
	err := m.pool.ReleaseTimeout(timeout)
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// IsClosed reports whether the pool has been released.
func (m *Manager) IsClosed() bool {
	return m.pool.IsClosed()
}

// Stats returns a point-in-time view of the pool.
func (m *Manager) Stats() Stats {
	return Stats{
		Capacity:  m.pool.Cap(),
		Running:   m.pool.Running(),
		Free:      m.pool.Free(),
		Waiting:   m.pool.Waiting(),
		Submitted: m.submitted.Load(),
		Completed: m.completed.Load(),
		Rejected:  m.rejected.Load(),
		Panics:    m.panics.Load(),
	}
}

// Stats contains pool counters and gauges.
type Stats struct {
	// Capacity is the configured worker limit.
	Capacity int

	// Running is the number of workers currently executing tasks.
	Running int

	// Free is the number of available workers.
	Free int

	// Waiting is the number of blocked submitters.
	Waiting int

	// Submitted is the total number of tasks handed to the pool.
	Submitted uint64

	// Completed is the number of tasks that ran to completion.
	Completed uint64

	// Rejected is the number of tasks the pool refused.
	Rejected uint64

	// Panics is the number of tasks that panicked.
	Panics uint64
}
