package alert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/events"
)

// collectSamples gathers every typed GPU sample the bridge republishes.
func collectSamples(t *testing.T, bus event.Bus) func() []events.GPUSample {
	t.Helper()
	var mu sync.Mutex
	var got []events.GPUSample
	_, err := bus.SubscribeFunc(events.KindTelemetryGPU, func(_ context.Context, evt any) error {
		if s, ok := evt.(events.GPUSample); ok {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeFunc() error = %v", err)
	}
	return func() []events.GPUSample {
		mu.Lock()
		defer mu.Unlock()
		return append([]events.GPUSample(nil), got...)
	}
}

func TestNewBridge(t *testing.T) {
	bus := newRunningBus(t)
	b := NewBridge(bus)

	if b.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if b.channel != DefaultBridgeChannel {
		t.Errorf("channel = %q, want %q", b.channel, DefaultBridgeChannel)
	}
}

func TestBridge_StartStop(t *testing.T) {
	bus := newRunningBus(t)
	b := NewBridge(bus)

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !b.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := b.Start(); !errors.Is(err, ErrBridgeRunning) {
		t.Errorf("second Start() error = %v, want ErrBridgeRunning", err)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if b.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := b.Stop(); !errors.Is(err, ErrBridgeNotRunning) {
		t.Errorf("second Stop() error = %v, want ErrBridgeNotRunning", err)
	}
}

func TestBridge_TranslatesObject(t *testing.T) {
	bus := newRunningBus(t)
	samples := collectSamples(t, bus)

	b := NewBridge(bus)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	payload := `{"device":2,"utilization":85.5,"memory_used":8192,"memory_total":24576,"temperature":71,"power_draw":245,"fan_speed":62}`
	if err := bus.PublishName(context.Background(), DefaultBridgeChannel, payload); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	got := samples()
	if len(got) != 1 {
		t.Fatalf("received %d samples, want 1", len(got))
	}

	s := got[0]
	if s.Device != 2 {
		t.Errorf("Device = %d, want 2", s.Device)
	}
	if s.Utilization != 85.5 {
		t.Errorf("Utilization = %f, want 85.5", s.Utilization)
	}
	if s.MemoryUsed != 8192 || s.MemoryTotal != 24576 {
		t.Errorf("memory = %d/%d, want 8192/24576", s.MemoryUsed, s.MemoryTotal)
	}
	if s.Temperature != 71 {
		t.Errorf("Temperature = %f, want 71", s.Temperature)
	}
	if s.PowerDraw != 245 {
		t.Errorf("PowerDraw = %f, want 245", s.PowerDraw)
	}
	if s.FanSpeed != 62 {
		t.Errorf("FanSpeed = %f, want 62", s.FanSpeed)
	}
	if s.EventMetadata().Source != "legacy-bridge" {
		t.Errorf("Source = %q, want legacy-bridge", s.EventMetadata().Source)
	}

	if got := b.Stats().Translated; got != 1 {
		t.Errorf("Translated = %d, want 1", got)
	}
}

func TestBridge_TranslatesArray(t *testing.T) {
	bus := newRunningBus(t)
	samples := collectSamples(t, bus)

	b := NewBridge(bus)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	payload := `[{"device":0,"utilization":30},{"device":1,"utilization":60}]`
	if err := bus.PublishName(context.Background(), DefaultBridgeChannel, payload); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	got := samples()
	if len(got) != 2 {
		t.Fatalf("received %d samples, want 2", len(got))
	}
	if got[0].Device != 0 || got[1].Device != 1 {
		t.Errorf("devices = %d, %d, want 0, 1", got[0].Device, got[1].Device)
	}
	if got[1].Utilization != 60 {
		t.Errorf("Utilization = %f, want 60", got[1].Utilization)
	}
	if got := b.Stats().Translated; got != 2 {
		t.Errorf("Translated = %d, want 2", got)
	}
}

func TestBridge_BytesPayload(t *testing.T) {
	bus := newRunningBus(t)
	samples := collectSamples(t, bus)

	b := NewBridge(bus)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	payload := []byte(`{"device":0,"utilization":44}`)
	if err := bus.PublishName(context.Background(), DefaultBridgeChannel, payload); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	if got := samples(); len(got) != 1 {
		t.Fatalf("received %d samples, want 1", len(got))
	}
}

func TestBridge_MalformedJSON(t *testing.T) {
	bus := newRunningBus(t)
	samples := collectSamples(t, bus)

	b := NewBridge(bus)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	if err := bus.PublishName(context.Background(), DefaultBridgeChannel, `{"device": 0,`); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	if got := samples(); len(got) != 0 {
		t.Errorf("received %d samples from malformed payload, want 0", len(got))
	}
	if got := b.Stats().Malformed; got != 1 {
		t.Errorf("Malformed = %d, want 1", got)
	}
}

func TestBridge_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"no device", `{"utilization":50}`},
		{"no utilization", `{"device":0}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newRunningBus(t)
			samples := collectSamples(t, bus)

			b := NewBridge(bus)
			if err := b.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer func() { _ = b.Stop() }()

			if err := bus.PublishName(context.Background(), DefaultBridgeChannel, tt.payload); err != nil {
				t.Fatalf("PublishName() error = %v", err)
			}

			if got := samples(); len(got) != 0 {
				t.Errorf("received %d samples, want 0", len(got))
			}
			if got := b.Stats().Malformed; got != 1 {
				t.Errorf("Malformed = %d, want 1", got)
			}
		})
	}
}

func TestBridge_NonTextPayload(t *testing.T) {
	bus := newRunningBus(t)

	b := NewBridge(bus)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	if err := bus.PublishName(context.Background(), DefaultBridgeChannel, 42); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	if got := b.Stats().Malformed; got != 1 {
		t.Errorf("Malformed = %d, want 1", got)
	}
}

func TestBridge_PartialArray(t *testing.T) {
	bus := newRunningBus(t)
	samples := collectSamples(t, bus)

	b := NewBridge(bus)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	payload := `[{"device":0,"utilization":30},{"utilization":60}]`
	if err := bus.PublishName(context.Background(), DefaultBridgeChannel, payload); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	if got := samples(); len(got) != 1 {
		t.Fatalf("received %d samples, want 1", len(got))
	}

	stats := b.Stats()
	if stats.Translated != 1 || stats.Malformed != 1 {
		t.Errorf("Translated = %d, Malformed = %d, want 1 and 1", stats.Translated, stats.Malformed)
	}
}

func TestBridge_CustomChannel(t *testing.T) {
	bus := newRunningBus(t)
	samples := collectSamples(t, bus)

	b := NewBridge(bus, WithChannel("nvml.legacy"), WithBridgeSource("nvml"))
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	payload := `{"device":0,"utilization":50}`
	if err := bus.PublishName(context.Background(), "nvml.legacy", payload); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	got := samples()
	if len(got) != 1 {
		t.Fatalf("received %d samples, want 1", len(got))
	}
	if got[0].EventMetadata().Source != "nvml" {
		t.Errorf("Source = %q, want nvml", got[0].EventMetadata().Source)
	}
}

func TestBridge_FeedsEngine(t *testing.T) {
	bus := newRunningBus(t)

	rule := NewThresholdRule("gpu-busy", MetricUtilization, Above, 80, events.SeverityWarning)
	e := NewEngine(bus, WithRules(rule))
	if err := e.Start(); err != nil {
		t.Fatalf("engine Start() error = %v", err)
	}
	defer func() { _ = e.Stop() }()

	b := NewBridge(bus)
	if err := b.Start(); err != nil {
		t.Fatalf("bridge Start() error = %v", err)
	}
	defer func() { _ = b.Stop() }()

	payload := `{"device":0,"utilization":93}`
	if err := bus.PublishName(context.Background(), DefaultBridgeChannel, payload); err != nil {
		t.Fatalf("PublishName() error = %v", err)
	}

	if got := e.Stats().Raised; got != 1 {
		t.Errorf("engine Raised = %d after bridged reading, want 1", got)
	}
}
