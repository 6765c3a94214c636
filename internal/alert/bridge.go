package alert

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/events"
)

// Bridge errors.
var (
	// ErrBridgeRunning is returned when Start is called on a running bridge.
	ErrBridgeRunning = errors.New("legacy bridge is already running")

	// ErrBridgeNotRunning is returned when Stop is called on a stopped bridge.
	ErrBridgeNotRunning = errors.New("legacy bridge is not running")
)

// DefaultBridgeChannel is the name-channel older collectors publish on.
const DefaultBridgeChannel = "gpu-metrics"

// Bridge translates legacy JSON metric payloads into typed sample events.
//
// Older collectors publish JSON text on a name-channel. The bridge
// subscribes there, extracts the metric fields, and republishes each
// reading as a typed event on the telemetry kind, so rule evaluation
// and state tracking see one stream regardless of producer vintage. A
// payload may be a single reading or an array of readings.
type Bridge struct {
	subscriber *event.Subscriber
	pub        *event.Publisher
	logger     *zap.Logger
	channel    string
	source     string

	mu      sync.Mutex
	running bool

	// Stats
	translated atomic.Uint64
	malformed  atomic.Uint64
	failed     atomic.Uint64
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithChannel sets the name-channel the bridge listens on.
func WithChannel(name string) BridgeOption {
	return func(b *Bridge) {
		if name != "" {
			b.channel = name
		}
	}
}

// WithBridgeLogger sets the bridge logger.
func WithBridgeLogger(logger *zap.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBridgeSource sets the source identity stamped on translated events.
func WithBridgeSource(source string) BridgeOption {
	return func(b *Bridge) {
		if source != "" {
			b.source = source
		}
	}
}

// NewBridge creates a bridge on the given bus. It does not receive
// payloads until Start is called.
func NewBridge(bus event.Bus, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		subscriber: event.NewSubscriber(bus),
		logger:     zap.NewNop(),
		channel:    DefaultBridgeChannel,
		source:     "legacy-bridge",
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pub = event.NewPublisher(bus, b.source)
	return b
}

// Start subscribes the bridge to its name-channel.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return ErrBridgeRunning
	}

	if _, err := b.subscriber.SubscribeNameFunc(b.channel, b.handle); err != nil {
		return err
	}

	b.running = true
	b.logger.Info("legacy bridge started", zap.String("channel", b.channel))
	return nil
}

// Stop cancels the bridge's subscription. The bridge cannot be restarted.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return ErrBridgeNotRunning
	}
	b.running = false

	err := b.subscriber.Close()
	b.logger.Info("legacy bridge stopped")
	return err
}

// IsRunning returns true if the bridge is subscribed.
func (b *Bridge) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// handle translates one legacy payload. Malformed payloads are counted
// and dropped; they never fail the legacy publisher.
func (b *Bridge) handle(ctx context.Context, payload any) error {
	raw, ok := jsonText(payload)
	if !ok || !gjson.Valid(raw) {
		b.malformed.Add(1)
		b.logger.Warn("legacy payload is not valid JSON", zap.String("channel", b.channel))
		return nil
	}

	root := gjson.Parse(raw)
	if root.IsArray() {
		for _, item := range root.Array() {
			b.translate(ctx, item)
		}
		return nil
	}

	b.translate(ctx, root)
	return nil
}

// jsonText extracts JSON text from the payload shapes legacy tooling sends.
func jsonText(payload any) (string, bool) {
	switch v := payload.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.RawMessage:
		return string(v), true
	default:
		return "", false
	}
}

// translate republishes one legacy reading as a typed sample event.
func (b *Bridge) translate(ctx context.Context, item gjson.Result) {
	device := item.Get("device")
	util := item.Get("utilization")
	if !device.Exists() || !util.Exists() {
		b.malformed.Add(1)
		b.logger.Warn("legacy payload missing device or utilization",
			zap.String("channel", b.channel))
		return
	}

	evt := events.NewGPUSample(b.source, int(device.Int()), util.Float(),
		item.Get("memory_used").Uint(), item.Get("memory_total").Uint(),
		item.Get("temperature").Float(), item.Get("power_draw").Float(),
		item.Get("fan_speed").Float())

	if err := b.pub.Publish(ctx, evt); err != nil {
		b.failed.Add(1)
		b.logger.Warn("legacy sample republish failed",
			zap.Int("device", evt.Device),
			zap.Error(err))
		return
	}
	b.translated.Add(1)
}

// Stats returns bridge counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Translated: b.translated.Load(),
		Malformed:  b.malformed.Load(),
		Failed:     b.failed.Load(),
	}
}

// BridgeStats contains bridge counters.
type BridgeStats struct {
	// Translated is the number of readings republished as typed events.
	Translated uint64

	// Malformed is the number of payloads or readings dropped as unusable.
	Malformed uint64

	// Failed is the number of republishes the bus rejected.
	Failed uint64
}
