package config

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/events"
)

// Watcher errors.
var (
	// ErrWatcherRunning is returned when Start is called on a running watcher.
	ErrWatcherRunning = errors.New("config watcher is already running")

	// ErrWatcherNotRunning is returned when Stop is called on a stopped watcher.
	ErrWatcherNotRunning = errors.New("config watcher is not running")
)

// DefaultPollInterval is how often the watcher checks the file for changes.
const DefaultPollInterval = 2 * time.Second

// Watcher polls the configuration file, reloads it when the file changes,
// and publishes one change event per key whose effective value differs.
// A reload that fails validation or parsing keeps the previous configuration.
type Watcher struct {
	loader   *Loader
	pub      *event.Publisher
	interval time.Duration
	logger   *zap.Logger
	source   string

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	cfgMu    sync.RWMutex
	current  Config
	snapshot map[string]any

	// lastMod and lastSize are owned by the poll goroutine.
	lastMod  time.Time
	lastSize int64

	reloads       atomic.Uint64
	failedReloads atomic.Uint64
	keysChanged   atomic.Uint64
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the file is checked.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWatcherSource sets the source recorded on published events.
func WithWatcherSource(source string) WatcherOption {
	return func(w *Watcher) {
		if source != "" {
			w.source = source
		}
	}
}

// NewWatcher creates a watcher that loads through loader and publishes
// configuration events on the bus. Call Start to perform the initial load.
func NewWatcher(bus event.Bus, loader *Loader, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		loader:   loader,
		interval: DefaultPollInterval,
		logger:   zap.NewNop(),
		source:   "config",
	}
	for _, opt := range opts {
		opt(w)
	}
	w.pub = event.NewPublisher(bus, w.source)
	return w
}

// Start performs the initial load, publishes the loaded event, and begins
// polling. A failed initial load aborts Start.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrWatcherRunning
	}

	cfg, err := w.loader.Load()
	if err != nil {
		return err
	}
	snap, err := Snapshot(cfg)
	if err != nil {
		return err
	}

	w.cfgMu.Lock()
	w.current = cfg
	w.snapshot = snap
	w.cfgMu.Unlock()

	if info, err := os.Stat(w.loader.Path()); err == nil {
		w.lastMod = info.ModTime()
		w.lastSize = info.Size()
	}

	if err := w.pub.Publish(context.Background(), events.NewConfigLoaded(w.source, w.loader.Path(), len(snap))); err != nil {
		w.logger.Warn("config loaded event not delivered", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx)

	w.logger.Info("config watcher started",
		zap.String("path", w.loader.Path()),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop ends polling. It waits for the poll goroutine to finish or for ctx.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return ErrWatcherNotRunning
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the watcher is polling.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Current returns the latest good configuration.
func (w *Watcher) Current() Config {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()

	cfg := w.current
	cfg.Alerts = append([]AlertRuleConfig(nil), w.current.Alerts...)
	return cfg
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	info, err := os.Stat(w.loader.Path())
	if err != nil {
		return
	}
	if info.ModTime().Equal(w.lastMod) && info.Size() == w.lastSize {
		return
	}
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()

	cfg, err := w.loader.Load()
	if err != nil {
		w.failedReloads.Add(1)
		w.logger.Warn("config reload failed, keeping previous configuration",
			zap.String("path", w.loader.Path()),
			zap.Error(err))
		return
	}
	snap, err := Snapshot(cfg)
	if err != nil {
		w.failedReloads.Add(1)
		w.logger.Warn("config reload failed, keeping previous configuration",
			zap.String("path", w.loader.Path()),
			zap.Error(err))
		return
	}

	w.cfgMu.Lock()
	old := w.snapshot
	w.current = cfg
	w.snapshot = snap
	w.cfgMu.Unlock()

	changes := diffSnapshots(old, snap)
	if len(changes) == 0 {
		return
	}

	w.reloads.Add(1)
	w.keysChanged.Add(uint64(len(changes)))

	for _, ch := range changes {
		if ctx.Err() != nil {
			return
		}
		evt := events.NewConfigChanged(w.source, ch.key, ch.oldValue, ch.newValue)
		if err := w.pub.Publish(ctx, evt); err != nil {
			w.logger.Warn("config change event not delivered",
				zap.String("key", ch.key),
				zap.Error(err))
		}
	}

	w.logger.Info("configuration reloaded",
		zap.String("path", w.loader.Path()),
		zap.Int("changed_keys", len(changes)))
}

type keyChange struct {
	key      string
	oldValue any
	newValue any
}

// diffSnapshots compares flattened snapshots and returns the changed keys
// in sorted order. Removed keys report a nil new value, added keys a nil
// old value.
func diffSnapshots(old, current map[string]any) []keyChange {
	var changes []keyChange

	for k, ov := range old {
		nv, ok := current[k]
		if !ok {
			changes = append(changes, keyChange{key: k, oldValue: ov})
			continue
		}
		if !reflect.DeepEqual(ov, nv) {
			changes = append(changes, keyChange{key: k, oldValue: ov, newValue: nv})
		}
	}
	for k, nv := range current {
		if _, ok := old[k]; !ok {
			changes = append(changes, keyChange{key: k, newValue: nv})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].key < changes[j].key })
	return changes
}

// WatcherStats contains watcher counters.
type WatcherStats struct {
	// Reloads is the number of reloads that produced at least one change.
	Reloads uint64

	// FailedReloads counts reloads rejected by parsing or validation.
	FailedReloads uint64

	// KeysChanged is the total number of change events published.
	KeysChanged uint64
}

// Stats returns watcher counters.
func (w *Watcher) Stats() WatcherStats {
	return WatcherStats{
		Reloads:       w.reloads.Load(),
		FailedReloads: w.failedReloads.Load(),
		KeysChanged:   w.keysChanged.Load(),
	}
}
