// Package app assembles the monitor. It owns the component lifecycle:
// configuration is loaded first, the event bus and its CPU pool come up
// next, then the consumers (state store, alert engine, legacy bridge)
// and finally the producers (telemetry poller, config watcher). Shutdown
// walks the same chain in reverse so producers stop feeding the bus
// before the consumers detach from it.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/alert"
	"github.com/dshills/gpupulse/internal/config"
	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/resource"
	"github.com/dshills/gpupulse/internal/state"
	"github.com/dshills/gpupulse/internal/telemetry"
)

// shutdownTimeout bounds how long Shutdown waits for each draining step.
const shutdownTimeout = 5 * time.Second

// Options controls application startup.
type Options struct {
	// ConfigPath is the TOML configuration file. Empty runs on compiled
	// defaults plus environment overrides, with no file watching.
	ConfigPath string

	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// Development switches the logger to a human-readable encoder.
	Development bool
}

// Application wires the bus, pool, consumers and producers together.
type Application struct {
	opts   Options
	cfg    config.Config
	logger *zap.Logger

	loader  *config.Loader
	pool    *resource.Manager
	bus     event.Bus
	store   *state.Store
	engine  *alert.Engine
	bridge  *alert.Bridge
	legacy  *event.BusAdapter
	poller  *telemetry.Poller
	watcher *config.Watcher

	subs    *event.Subscriber
	scripts []*alert.ScriptRule

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New builds and starts every component. On failure the partially
// started application is torn down and the error names the component
// that refused to come up.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts: opts,
		done: make(chan struct{}),
	}
	if err := app.bootstrap(); err != nil {
		_ = app.Shutdown()
		return nil, err
	}
	return app, nil
}

// bootstrap starts components in dependency order. Fields are assigned
// only after the component is running, so teardown can treat every
// non-nil field as started.
func (app *Application) bootstrap() error {
	// Configuration first. Everything below is sized from it.
	loader := config.NewLoader(app.opts.ConfigPath)
	cfg, err := loader.Load()
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if app.opts.LogLevel != "" {
		cfg.Logging.Level = app.opts.LogLevel
	}
	if app.opts.Development {
		cfg.Logging.Development = true
	}
	app.loader = loader
	app.cfg = cfg

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}
	app.logger = logger

	// CPU pool, shared by the bus for isolated dispatch.
	poolOpts := []resource.Option{resource.WithLogger(logger.Named("resource"))}
	if cfg.Pool.Workers > 0 {
		poolOpts = append(poolOpts, resource.WithWorkers(cfg.Pool.Workers))
	}
	if cfg.Pool.MaxBlocking > 0 {
		poolOpts = append(poolOpts, resource.WithMaxBlockingTasks(cfg.Pool.MaxBlocking))
	}
	pool, err := resource.NewManager(poolOpts...)
	if err != nil {
		return &InitError{Component: "cpu pool", Err: err}
	}
	app.pool = pool

	bus := event.NewBus(
		event.WithRunner(pool),
		event.WithLogger(logger.Named("event")),
		event.WithAsyncQueueSize(cfg.Bus.QueueSize),
		event.WithAsyncWorkerCount(cfg.Bus.Workers),
	)
	if err := bus.Start(); err != nil {
		return &InitError{Component: "event bus", Err: err}
	}
	app.bus = bus

	// Consumers before producers so the first sample already finds them.
	store := state.NewStore(bus, state.WithStoreLogger(logger.Named("state")))
	if err := store.Start(); err != nil {
		return &InitError{Component: "state store", Err: err}
	}
	app.store = store

	rules, scripts, err := buildRules(cfg.Alerts)
	if err != nil {
		return &InitError{Component: "alert rules", Err: err}
	}
	app.scripts = scripts

	engine := alert.NewEngine(bus,
		alert.WithRules(rules...),
		alert.WithEngineLogger(logger.Named("alert")),
	)
	if err := engine.Start(); err != nil {
		return &InitError{Component: "alert engine", Err: err}
	}
	app.engine = engine

	if cfg.Bridge.Enabled {
		bridge := alert.NewBridge(bus,
			alert.WithChannel(cfg.Bridge.Channel),
			alert.WithBridgeLogger(logger.Named("bridge")),
		)
		if err := bridge.Start(); err != nil {
			return &InitError{Component: "legacy bridge", Err: err}
		}
		app.bridge = bridge

		// The adapter is the producer-side entry point matching the
		// bridge: older tooling publishes raw payloads through it onto
		// the bridge's name-channel.
		app.legacy = event.NewBusAdapter(bus, "legacy")
	}

	if err := app.registerSubscriptions(); err != nil {
		return &InitError{Component: "subscriptions", Err: err}
	}

	seed := cfg.Telemetry.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	source := telemetry.NewSimSource(cfg.Telemetry.Devices, seed)
	poller := telemetry.NewPoller(bus, source,
		telemetry.WithInterval(cfg.Telemetry.Interval.AsDuration()),
		telemetry.WithLogger(logger.Named("telemetry")),
	)
	if err := poller.Start(); err != nil {
		return &InitError{Component: "telemetry poller", Err: err}
	}
	app.poller = poller

	// Watch the file only when there is one.
	if app.opts.ConfigPath != "" {
		watcher := config.NewWatcher(bus, loader,
			config.WithWatcherLogger(logger.Named("config")),
		)
		if err := watcher.Start(); err != nil {
			return &InitError{Component: "config watcher", Err: err}
		}
		app.watcher = watcher
	}

	return nil
}

// Run blocks until Shutdown is called.
func (app *Application) Run() error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	app.logger.Info("gpupulse started",
		zap.Int("devices", app.cfg.Telemetry.Devices),
		zap.Duration("interval", app.cfg.Telemetry.Interval.AsDuration()),
		zap.Int("rules", len(app.cfg.Alerts)),
		zap.Bool("bridge", app.cfg.Bridge.Enabled),
	)

	<-app.done
	return nil
}

// Shutdown stops every component in reverse dependency order. It is
// safe to call more than once and unblocks Run.
func (app *Application) Shutdown() error {
	app.stopOnce.Do(func() {
		close(app.done)
		app.stopErr = app.teardown()
	})
	return app.stopErr
}

func (app *Application) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error

	// Producers first so nothing new reaches the bus.
	if app.watcher != nil {
		errs = multierr.Append(errs, app.watcher.Stop(ctx))
	}
	if app.poller != nil {
		errs = multierr.Append(errs, app.poller.Stop(ctx))
	}
	if app.legacy != nil {
		errs = multierr.Append(errs, app.legacy.Close())
	}

	// Consumers detach next.
	if app.subs != nil {
		errs = multierr.Append(errs, app.subs.Close())
	}
	if app.bridge != nil {
		errs = multierr.Append(errs, app.bridge.Stop())
	}
	if app.engine != nil {
		errs = multierr.Append(errs, app.engine.Stop())
	}
	if app.store != nil {
		errs = multierr.Append(errs, app.store.Stop())
	}
	for _, script := range app.scripts {
		errs = multierr.Append(errs, script.Close())
	}

	// The bus drains queued deliveries, then the pool goes away.
	if app.bus != nil {
		errs = multierr.Append(errs, app.bus.Stop(ctx))
	}
	if app.pool != nil {
		errs = multierr.Append(errs, app.pool.CloseTimeout(shutdownTimeout))
	}

	if app.logger != nil {
		_ = app.logger.Sync()
	}
	return errs
}

// IsRunning reports whether Run is currently blocked in its main loop.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the configuration the application currently runs with.
// When a watcher is active this reflects the latest successful reload.
func (app *Application) Config() config.Config {
	if app.watcher != nil {
		return app.watcher.Current()
	}
	return app.cfg
}

// Bus exposes the event bus, mainly for embedding and tests.
func (app *Application) Bus() event.Bus {
	return app.bus
}

// Store exposes the state store.
func (app *Application) Store() *state.Store {
	return app.store
}

// Legacy returns the name-channel publishing facade older tooling uses
// to feed the bridge. Nil when the bridge is disabled.
func (app *Application) Legacy() *event.BusAdapter {
	return app.legacy
}

// Engine exposes the alert engine.
func (app *Application) Engine() *alert.Engine {
	return app.engine
}

// Status is a point-in-time view of every component's counters.
type Status struct {
	Running bool
	Bus     event.Stats
	Pool    resource.Stats
	Poller  telemetry.PollerStats
	Store   state.StoreStats
	Engine  alert.EngineStats
	Bridge  alert.BridgeStats
	Watcher config.WatcherStats
}

// Status collects counters from all live components. Components that
// were never started report zero values.
func (app *Application) Status() Status {
	st := Status{Running: app.running.Load()}
	if app.bus != nil {
		st.Bus = app.bus.Stats()
	}
	if app.pool != nil {
		st.Pool = app.pool.Stats()
	}
	if app.poller != nil {
		st.Poller = app.poller.Stats()
	}
	if app.store != nil {
		st.Store = app.store.Stats()
	}
	if app.engine != nil {
		st.Engine = app.engine.Stats()
	}
	if app.bridge != nil {
		st.Bridge = app.bridge.Stats()
	}
	if app.watcher != nil {
		st.Watcher = app.watcher.Stats()
	}
	return st
}
