package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/events"
)

// Sentinel errors for the telemetry package.
var (
	// ErrPollerRunning is returned when Start is called on a running poller.
	ErrPollerRunning = errors.New("poller is already running")

	// ErrPollerNotRunning is returned when Stop is called on a stopped poller.
	ErrPollerNotRunning = errors.New("poller is not running")
)

// Poller drives a Source at a fixed interval and publishes one GPU
// sample event per device through the bus's isolated path, keeping
// metric processing on the resource manager's CPU pool. A rejected
// publish is logged and dropped: the next tick captures fresh state,
// so retrying a stale reading buys nothing.
type Poller struct {
	pub      *event.Publisher
	source   Source
	interval time.Duration
	logger   *zap.Logger
	srcName  string

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	// Stats
	polls      atomic.Uint64
	sampled    atomic.Uint64
	published  atomic.Uint64
	dropped    atomic.Uint64
	sourceErrs atomic.Uint64
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the capture interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the poller logger.
func WithLogger(logger *zap.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSourceName sets the source identity stamped on published samples.
func WithSourceName(name string) PollerOption {
	return func(p *Poller) {
		if name != "" {
			p.srcName = name
		}
	}
}

// NewPoller creates a poller that captures from source and publishes on
// bus. It does not start polling until Start is called.
func NewPoller(bus event.Bus, source Source, opts ...PollerOption) *Poller {
	p := &Poller{
		source:   source,
		interval: time.Second,
		logger:   zap.NewNop(),
		srcName:  "poller",
	}
	for _, opt := range opts {
		opt(p)
	}
	p.pub = event.NewPublisher(bus, p.srcName)
	return p
}

// Start begins the capture loop. The first capture happens immediately;
// monitoring should not wait a full interval for its first data point.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(ctx)

	p.logger.Info("telemetry poller started",
		zap.Duration("interval", p.interval),
		zap.String("source", p.srcName))
	return nil
}

// Stop halts the capture loop. It waits for an in-flight capture to
// finish or for the context to expire, whichever comes first.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}
	p.running = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		p.logger.Info("telemetry poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns true if the capture loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// loop ticks until the poller is stopped.
func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll captures one reading per device and publishes each as an event.
func (p *Poller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.polls.Add(1)

	samples, err := p.source.Sample(ctx)
	if err != nil {
		p.sourceErrs.Add(1)
		p.logger.Warn("telemetry capture failed", zap.Error(err))
		return
	}

	for _, s := range samples {
		if ctx.Err() != nil {
			return
		}
		p.sampled.Add(1)

		evt := events.NewGPUSample(p.srcName, s.Device, s.Utilization,
			s.MemoryUsed, s.MemoryTotal, s.Temperature, s.PowerDraw, s.FanSpeed)

		if err := p.pub.PublishIsolated(ctx, evt); err != nil {
			p.dropped.Add(1)
			p.logger.Warn("gpu sample dropped",
				zap.Int("device", s.Device),
				zap.Error(err))
			continue
		}
		p.published.Add(1)
	}
}

// Stats returns poller counters.
func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Polls:        p.polls.Load(),
		Sampled:      p.sampled.Load(),
		Published:    p.published.Load(),
		Dropped:      p.dropped.Load(),
		SourceErrors: p.sourceErrs.Load(),
	}
}

// PollerStats contains poller counters.
type PollerStats struct {
	// Polls is the number of capture rounds attempted.
	Polls uint64

	// Sampled is the number of per-device readings captured.
	Sampled uint64

	// Published is the number of sample events delivered to the bus.
	Published uint64

	// Dropped is the number of sample events rejected by the bus.
	Dropped uint64

	// SourceErrors is the number of failed capture rounds.
	SourceErrors uint64
}
