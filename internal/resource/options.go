package resource

import (
	"runtime"

	"go.uber.org/zap"
)

// Option configures a Manager.
type Option func(*config)

// config contains configuration for the CPU pool.
type config struct {
	// workers is the pool capacity.
	workers int

	// nonblocking makes Submit fail fast instead of waiting for a
	// free worker.
	nonblocking bool

	// maxBlockingTasks bounds the number of blocked submitters when
	// the pool runs in blocking mode. Zero means unbounded.
	maxBlockingTasks int

	// logger receives pool lifecycle events and task panics.
	logger *zap.Logger

	// panicHandler replaces the default panic logging when set.
	panicHandler func(any)
}

// defaultConfig returns sensible default configuration.
func defaultConfig() config {
	return config{
		workers:     runtime.NumCPU(),
		nonblocking: true,
		logger:      zap.NewNop(),
	}
}

// WithWorkers sets the pool capacity.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMaxBlockingTasks switches the pool to blocking mode with at most
// n submitters waiting for a free worker. Further submits are rejected.
func WithMaxBlockingTasks(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.nonblocking = false
			c.maxBlockingTasks = n
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPanicHandler sets a custom handler for task panics. The default
// logs the panic value and stack.
func WithPanicHandler(h func(any)) Option {
	return func(c *config) {
		if h != nil {
			c.panicHandler = h
		}
	}
}
