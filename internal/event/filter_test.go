package event

import (
	"testing"

	"github.com/dshills/gpupulse/internal/event/kind"
)

func TestFilterBySource(t *testing.T) {
	filter := FilterBySource("test-source")

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "matching source via envelope",
			event: Envelope{
				Kind: "test.event",
				Meta: Metadata{Source: "test-source"},
			},
			want: true,
		},
		{
			name: "non-matching source via envelope",
			event: Envelope{
				Kind: "test.event",
				Meta: Metadata{Source: "other-source"},
			},
			want: false,
		},
		{
			name:  "matching source via typed event",
			event: testEvent{Base: NewBase("test-source"), kind: "test.event"},
			want:  true,
		},
		{
			name:  "non-matching source via typed event",
			event: testEvent{Base: NewBase("other-source"), kind: "test.event"},
			want:  false,
		},
		{
			name:  "unknown event type",
			event: "just a string",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterBySource() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterBySourcePrefix(t *testing.T) {
	filter := FilterBySourcePrefix("poller.")

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "matching prefix",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "poller.gpu0"},
			},
			want: true,
		},
		{
			name: "non-matching prefix",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "alert.engine"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterBySourcePrefix() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterBySources(t *testing.T) {
	filter := FilterBySources("poller", "simulator", "loader")

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "first allowed source",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "poller"},
			},
			want: true,
		},
		{
			name: "second allowed source",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "simulator"},
			},
			want: true,
		},
		{
			name: "disallowed source",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "other"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterBySources() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterExcludeSource(t *testing.T) {
	filter := FilterExcludeSource("metrics")

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "excluded source",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "metrics"},
			},
			want: false,
		},
		{
			name: "allowed source",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "poller"},
			},
			want: true,
		},
		{
			name:  "unknown event type",
			event: "just a string",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterExcludeSource() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterByKind(t *testing.T) {
	filter := FilterByKind(kind.Kind("telemetry"))

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name:  "descendant kind",
			event: Envelope{Kind: "telemetry.gpu"},
			want:  true,
		},
		{
			name:  "deep descendant kind",
			event: Envelope{Kind: "telemetry.gpu.memory"},
			want:  true,
		},
		{
			name:  "exact kind",
			event: Envelope{Kind: "telemetry"},
			want:  true,
		},
		{
			name:  "unrelated kind",
			event: Envelope{Kind: "config.changed"},
			want:  false,
		},
		{
			name:  "non-event",
			event: 42,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterByKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterByKindPrefix(t *testing.T) {
	filter := FilterByKindPrefix("alert.")

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name:  "matching prefix",
			event: Envelope{Kind: "alert.raised"},
			want:  true,
		},
		{
			name:  "non-matching prefix",
			event: Envelope{Kind: "telemetry.gpu"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterByKindPrefix() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterExcludeKind(t *testing.T) {
	filter := FilterExcludeKind(kind.Kind("telemetry"))

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name:  "excluded descendant",
			event: Envelope{Kind: "telemetry.gpu"},
			want:  false,
		},
		{
			name:  "excluded exact",
			event: Envelope{Kind: "telemetry"},
			want:  false,
		},
		{
			name:  "allowed kind",
			event: Envelope{Kind: "config.changed"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterExcludeKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterByCorrelation(t *testing.T) {
	filter := FilterByCorrelation("corr-123")

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "matching correlation",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{CorrelationID: "corr-123"},
			},
			want: true,
		},
		{
			name: "non-matching correlation",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{CorrelationID: "other"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterByCorrelation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterPayload(t *testing.T) {
	filter := FilterPayload(func(p TestPayload) bool {
		return p.Utilization > 80.0
	})

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name:  "payload passing filter",
			event: TestPayload{Device: 0, Utilization: 85.0},
			want:  true,
		},
		{
			name:  "payload failing filter",
			event: TestPayload{Device: 0, Utilization: 40.0},
			want:  false,
		},
		{
			name: "envelope with typed payload passing",
			event: Envelope{
				Kind:    "test",
				Payload: TestPayload{Device: 1, Utilization: 95.0},
			},
			want: true,
		},
		{
			name: "wrong payload type",
			event: Envelope{
				Kind:    "test",
				Payload: "string payload",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterPayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

// testDeviceEvent carries a device index through the indexer interface.
type testDeviceEvent struct {
	Base
	device int
}

func (e testDeviceEvent) EventKind() kind.Kind {
	return kind.Kind("telemetry.gpu")
}

func (e testDeviceEvent) DeviceIndex() int {
	return e.device
}

func TestFilterByDevice(t *testing.T) {
	filter := FilterByDevice(1)

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "matching device in map payload",
			event: Envelope{
				Kind:    "test",
				Payload: map[string]any{"device": 1},
			},
			want: true,
		},
		{
			name: "matching device as JSON-decoded float",
			event: Envelope{
				Kind:    "test",
				Payload: map[string]any{"device": float64(1)},
			},
			want: true,
		},
		{
			name: "non-matching device in map",
			event: Envelope{
				Kind:    "test",
				Payload: map[string]any{"device": 3},
			},
			want: false,
		},
		{
			name: "no device field",
			event: Envelope{
				Kind:    "test",
				Payload: map[string]any{"key": "value"},
			},
			want: false,
		},
		{
			name:  "typed event with device index",
			event: testDeviceEvent{Base: NewBase("test"), device: 1},
			want:  true,
		},
		{
			name:  "typed event with other device",
			event: testDeviceEvent{Base: NewBase("test"), device: 2},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterByDevice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterAnd(t *testing.T) {
	filter := FilterAnd(
		FilterBySource("poller"),
		FilterByKindPrefix("telemetry."),
	)

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "both conditions pass",
			event: Envelope{
				Kind: "telemetry.gpu",
				Meta: Metadata{Source: "poller"},
			},
			want: true,
		},
		{
			name: "only source passes",
			event: Envelope{
				Kind: "config.changed",
				Meta: Metadata{Source: "poller"},
			},
			want: false,
		},
		{
			name: "only kind passes",
			event: Envelope{
				Kind: "telemetry.gpu",
				Meta: Metadata{Source: "other"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterAnd() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterOr(t *testing.T) {
	filter := FilterOr(
		FilterBySource("poller"),
		FilterBySource("simulator"),
	)

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "first condition passes",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "poller"},
			},
			want: true,
		},
		{
			name: "second condition passes",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "simulator"},
			},
			want: true,
		},
		{
			name: "neither passes",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "other"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterOr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterNot(t *testing.T) {
	filter := FilterNot(FilterBySource("excluded"))

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{
			name: "excluded source",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "excluded"},
			},
			want: false,
		},
		{
			name: "other source",
			event: Envelope{
				Kind: "test",
				Meta: Metadata{Source: "allowed"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.event); got != tt.want {
				t.Errorf("FilterNot() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterAll(t *testing.T) {
	filter := FilterAll()

	events := []any{
		"string",
		123,
		Envelope{Kind: "test"},
		newTestEvent("test", "data"),
	}

	for i, event := range events {
		if !filter(event) {
			t.Errorf("FilterAll() for event %d = false, want true", i)
		}
	}
}

func TestFilterNone(t *testing.T) {
	filter := FilterNone()

	events := []any{
		"string",
		123,
		Envelope{Kind: "test"},
		newTestEvent("test", "data"),
	}

	for i, event := range events {
		if filter(event) {
			t.Errorf("FilterNone() for event %d = true, want false", i)
		}
	}
}
