package event

import (
	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event/dispatch"
)

// BusOption configures an event Bus.
type BusOption func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	// asyncQueueSize is the size of the async dispatch queue.
	asyncQueueSize int

	// asyncWorkerCount is the number of async worker goroutines.
	asyncWorkerCount int

	// logger receives handler failures and lifecycle events.
	logger *zap.Logger

	// runner executes isolated dispatch units on the resource manager's
	// CPU pool. PublishIsolated is unavailable without one.
	runner dispatch.Runner

	// panicHandler is called when a handler panics.
	panicHandler PanicHandler
}

// defaultBusConfig returns sensible default configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize:   10000,
		asyncWorkerCount: 10,
		logger:           zap.NewNop(),
		panicHandler:     DefaultPanicHandler,
	}
}

// WithAsyncQueueSize sets the async dispatch queue size.
func WithAsyncQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithAsyncWorkerCount sets the number of async worker goroutines.
func WithAsyncWorkerCount(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkerCount = count
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(logger *zap.Logger) BusOption {
	return func(c *busConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunner sets the resource runner used by PublishIsolated.
func WithRunner(r dispatch.Runner) BusOption {
	return func(c *busConfig) {
		c.runner = r
	}
}

// WithBusPanicHandler sets the panic handler for the bus.
func WithBusPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		if h != nil {
			c.panicHandler = h
		}
	}
}
