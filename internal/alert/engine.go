package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/events"
)

// Engine errors.
var (
	// ErrEngineRunning is returned when Start is called on a running engine.
	ErrEngineRunning = errors.New("alert engine is already running")

	// ErrEngineNotRunning is returned when Stop is called on a stopped engine.
	ErrEngineNotRunning = errors.New("alert engine is not running")
)

// Engine evaluates alert rules against the telemetry stream.
//
// The engine subscribes to the telemetry kind family, runs every rule
// against each GPU sample, and publishes alert.raised / alert.cleared
// events fire-and-forget. Raising is edge-triggered: a rule that keeps
// firing for a device opens one incident and stays silent until a
// non-firing sample closes it. The incident ID on the clear matches the
// raise.
type Engine struct {
	subscriber *event.Subscriber
	pub        *event.Publisher
	logger     *zap.Logger
	source     string

	mu      sync.Mutex
	rules   []Rule
	open    map[incidentKey]incident
	running bool

	// Stats
	evaluated atomic.Uint64
	raised    atomic.Uint64
	cleared   atomic.Uint64
	ruleErrs  atomic.Uint64
	dropped   atomic.Uint64
}

// incidentKey identifies an open incident: one rule firing on one device.
type incidentKey struct {
	rule   string
	device int
}

type incident struct {
	id       string
	raisedAt time.Time
}

// Incident is one open raise awaiting its clear.
type Incident struct {
	// ID links the raise to its eventual clear.
	ID string

	// Rule is the name of the firing rule.
	Rule string

	// Device is the device the rule fired for.
	Device int

	// RaisedAt is when the incident opened.
	RaisedAt time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRules registers rules at construction.
func WithRules(rules ...Rule) EngineOption {
	return func(e *Engine) {
		e.rules = append(e.rules, rules...)
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEngineSource sets the source identity stamped on alert events.
func WithEngineSource(source string) EngineOption {
	return func(e *Engine) {
		if source != "" {
			e.source = source
		}
	}
}

// NewEngine creates an alert engine on the given bus. It does not
// receive events until Start is called.
func NewEngine(bus event.Bus, opts ...EngineOption) *Engine {
	e := &Engine{
		subscriber: event.NewSubscriber(bus),
		logger:     zap.NewNop(),
		source:     "alert-engine",
		open:       make(map[incidentKey]incident),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pub = event.NewPublisher(bus, e.source)
	return e
}

// AddRule registers a rule. Safe while the engine is running; the next
// sample sees it.
func (e *Engine) AddRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Start subscribes the engine to the telemetry stream.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrEngineRunning
	}

	if _, err := e.subscriber.SubscribeFunc(events.KindTelemetry, e.handleEvent); err != nil {
		return err
	}

	e.running = true
	e.logger.Info("alert engine started", zap.Int("rules", len(e.rules)))
	return nil
}

// Stop cancels the engine's subscriptions. The engine cannot be
// restarted; open incidents are kept for inspection.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return ErrEngineNotRunning
	}
	e.running = false

	err := e.subscriber.Close()
	e.logger.Info("alert engine stopped")
	return err
}

// IsRunning returns true if the engine is subscribed.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// handleEvent feeds GPU samples to the rules; other telemetry kinds
// pass through untouched.
func (e *Engine) handleEvent(ctx context.Context, evt any) error {
	sample, ok := evt.(events.GPUSample)
	if !ok {
		return nil
	}
	e.evaluate(ctx, sample)
	return nil
}

// evaluate runs every rule against one sample.
func (e *Engine) evaluate(ctx context.Context, sample events.GPUSample) {
	e.mu.Lock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	for _, rule := range rules {
		e.evaluated.Add(1)

		verdict, err := rule.Evaluate(ctx, sample)
		if err != nil {
			e.ruleErrs.Add(1)
			e.logger.Warn("rule evaluation failed",
				zap.String("rule", rule.Name()),
				zap.Int("device", sample.Device),
				zap.Error(err))
			continue
		}

		e.apply(ctx, rule, sample, verdict)
	}
}

// apply reconciles one verdict against the incident table. Only edges
// publish: firing with no open incident raises, not firing with an open
// incident clears.
func (e *Engine) apply(ctx context.Context, rule Rule, sample events.GPUSample, verdict Verdict) {
	key := incidentKey{rule: rule.Name(), device: sample.Device}

	e.mu.Lock()
	inc, isOpen := e.open[key]
	switch {
	case verdict.Firing && !isOpen:
		inc = incident{id: uuid.NewString(), raisedAt: time.Now()}
		e.open[key] = inc
	case !verdict.Firing && isOpen:
		delete(e.open, key)
	default:
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if verdict.Firing {
		e.raise(ctx, key, rule, verdict, inc)
	} else {
		e.clear(ctx, key, rule, verdict, inc)
	}
}

func (e *Engine) raise(ctx context.Context, key incidentKey, rule Rule, verdict Verdict, inc incident) {
	message := verdict.Message
	if message == "" {
		message = fmt.Sprintf("rule %s firing on device %d", key.rule, key.device)
	}

	evt := events.NewAlertRaised(e.source, inc.id, key.rule, key.device,
		verdict.Metric, verdict.Value, verdict.Bound, rule.Severity(), message)

	if err := e.pub.PublishAsync(ctx, evt); err != nil {
		// Roll the incident back so the next firing sample retries.
		e.mu.Lock()
		delete(e.open, key)
		e.mu.Unlock()

		e.dropped.Add(1)
		e.logger.Error("alert raise dropped",
			zap.String("rule", key.rule),
			zap.Int("device", key.device),
			zap.Error(err))
		return
	}

	e.raised.Add(1)
	e.logger.Info("alert raised",
		zap.String("rule", key.rule),
		zap.Int("device", key.device),
		zap.String("incident", inc.id),
		zap.String("severity", string(rule.Severity())),
		zap.Float64("value", verdict.Value))
}

func (e *Engine) clear(ctx context.Context, key incidentKey, rule Rule, verdict Verdict, inc incident) {
	evt := events.NewAlertCleared(e.source, inc.id, key.rule, key.device,
		verdict.Metric, verdict.Value)

	if err := e.pub.PublishAsync(ctx, evt); err != nil {
		// Reopen the incident so the next non-firing sample retries.
		e.mu.Lock()
		e.open[key] = inc
		e.mu.Unlock()

		e.dropped.Add(1)
		e.logger.Error("alert clear dropped",
			zap.String("rule", key.rule),
			zap.Int("device", key.device),
			zap.Error(err))
		return
	}

	e.cleared.Add(1)
	e.logger.Info("alert cleared",
		zap.String("rule", key.rule),
		zap.Int("device", key.device),
		zap.String("incident", inc.id),
		zap.Float64("value", verdict.Value))
}

// ActiveIncidents returns the open incidents sorted by rule, then device.
func (e *Engine) ActiveIncidents() []Incident {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Incident, 0, len(e.open))
	for key, inc := range e.open {
		out = append(out, Incident{
			ID:       inc.id,
			Rule:     key.rule,
			Device:   key.device,
			RaisedAt: inc.raisedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		return out[i].Device < out[j].Device
	})
	return out
}

// Stats returns engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	active := len(e.open)
	e.mu.Unlock()

	return EngineStats{
		Evaluated:       e.evaluated.Load(),
		Raised:          e.raised.Load(),
		Cleared:         e.cleared.Load(),
		RuleErrors:      e.ruleErrs.Load(),
		Dropped:         e.dropped.Load(),
		ActiveIncidents: active,
	}
}

// EngineStats contains engine counters.
type EngineStats struct {
	// Evaluated is the number of rule evaluations performed.
	Evaluated uint64

	// Raised is the number of alert.raised events published.
	Raised uint64

	// Cleared is the number of alert.cleared events published.
	Cleared uint64

	// RuleErrors is the number of evaluations that failed.
	RuleErrors uint64

	// Dropped is the number of alert events the bus rejected.
	Dropped uint64

	// ActiveIncidents is the number of incidents currently open.
	ActiveIncidents int
}
