package alert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/gpupulse/internal/event/events"
)

func gpuSample(device int, utilization float64) events.GPUSample {
	return events.NewGPUSample("test", device, utilization, 8192, 16384, 70, 250, 60)
}

func TestComparison_Holds(t *testing.T) {
	tests := []struct {
		name    string
		compare Comparison
		value   float64
		bound   float64
		want    bool
	}{
		{"above true", Above, 85, 80, true},
		{"above equal is false", Above, 80, 80, false},
		{"below true", Below, 75, 80, true},
		{"below equal is false", Below, 80, 80, false},
		{"at least equal", AtLeast, 80, 80, true},
		{"at least under", AtLeast, 79.9, 80, false},
		{"at most equal", AtMost, 80, 80, true},
		{"at most over", AtMost, 80.1, 80, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.compare.holds(tt.value, tt.bound)
			if err != nil {
				t.Fatalf("holds() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("holds(%f, %f) = %v, want %v", tt.value, tt.bound, got, tt.want)
			}
		})
	}
}

func TestComparison_Holds_Unknown(t *testing.T) {
	if _, err := Comparison("near").holds(1, 2); !errors.Is(err, ErrUnknownComparison) {
		t.Errorf("holds() error = %v, want ErrUnknownComparison", err)
	}
}

func TestThresholdRule_Evaluate(t *testing.T) {
	sample := events.NewGPUSample("test", 0, 85, 13000, 16384, 78, 310, 65)

	tests := []struct {
		name      string
		metric    Metric
		compare   Comparison
		bound     float64
		wantFire  bool
		wantValue float64
	}{
		{"utilization above", MetricUtilization, Above, 80, true, 85},
		{"utilization within", MetricUtilization, Above, 90, false, 85},
		{"memory percent above", MetricMemory, Above, 75, true, float64(13000) / 16384 * 100},
		{"temperature at least", MetricTemperature, AtLeast, 78, true, 78},
		{"power above", MetricPower, Above, 300, true, 310},
		{"fan below", MetricFan, Below, 50, false, 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := NewThresholdRule("r", tt.metric, tt.compare, tt.bound, events.SeverityWarning)

			verdict, err := rule.Evaluate(context.Background(), sample)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if verdict.Firing != tt.wantFire {
				t.Errorf("Firing = %v, want %v", verdict.Firing, tt.wantFire)
			}
			if verdict.Value != tt.wantValue {
				t.Errorf("Value = %f, want %f", verdict.Value, tt.wantValue)
			}
			if verdict.Bound != tt.bound {
				t.Errorf("Bound = %f, want %f", verdict.Bound, tt.bound)
			}
			if verdict.Metric != string(tt.metric) {
				t.Errorf("Metric = %q, want %q", verdict.Metric, tt.metric)
			}
		})
	}
}

func TestThresholdRule_Evaluate_Message(t *testing.T) {
	rule := NewThresholdRule("gpu-busy", MetricUtilization, Above, 80, events.SeverityWarning)

	verdict, err := rule.Evaluate(context.Background(), gpuSample(0, 85))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	want := "device 0: utilization 85.0 is above bound 80.0"
	if verdict.Message != want {
		t.Errorf("Message = %q, want %q", verdict.Message, want)
	}

	verdict, err = rule.Evaluate(context.Background(), gpuSample(0, 50))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if verdict.Message != "" {
		t.Errorf("non-firing Message = %q, want empty", verdict.Message)
	}
}

func TestThresholdRule_DeviceScope(t *testing.T) {
	rule := NewThresholdRule("r", MetricUtilization, Above, 80, events.SeverityWarning)
	rule.Device = 1

	verdict, err := rule.Evaluate(context.Background(), gpuSample(0, 95))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if verdict.Firing {
		t.Error("rule fired for out-of-scope device")
	}

	verdict, err = rule.Evaluate(context.Background(), gpuSample(1, 95))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !verdict.Firing {
		t.Error("rule did not fire for in-scope device")
	}
}

func TestThresholdRule_UnknownMetric(t *testing.T) {
	rule := NewThresholdRule("r", Metric("voltage"), Above, 80, events.SeverityWarning)

	if _, err := rule.Evaluate(context.Background(), gpuSample(0, 85)); !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("Evaluate() error = %v, want ErrUnknownMetric", err)
	}
}

func TestThresholdRule_UnknownComparison(t *testing.T) {
	rule := NewThresholdRule("r", MetricUtilization, Comparison("near"), 80, events.SeverityWarning)

	if _, err := rule.Evaluate(context.Background(), gpuSample(0, 85)); !errors.Is(err, ErrUnknownComparison) {
		t.Errorf("Evaluate() error = %v, want ErrUnknownComparison", err)
	}
}

func TestThresholdRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    *ThresholdRule
		wantErr bool
	}{
		{
			"valid",
			NewThresholdRule("r", MetricUtilization, Above, 80, events.SeverityWarning),
			false,
		},
		{
			"empty name",
			NewThresholdRule("", MetricUtilization, Above, 80, events.SeverityWarning),
			true,
		},
		{
			"unknown metric",
			NewThresholdRule("r", Metric("voltage"), Above, 80, events.SeverityWarning),
			true,
		},
		{
			"unknown comparison",
			NewThresholdRule("r", MetricUtilization, Comparison("near"), 80, events.SeverityWarning),
			true,
		},
		{
			"unknown severity",
			NewThresholdRule("r", MetricUtilization, Above, 80, events.Severity("panic")),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRule) {
				t.Errorf("Validate() error = %v, want ErrInvalidRule in chain", err)
			}
		})
	}
}

func TestNewThresholdRule(t *testing.T) {
	rule := NewThresholdRule("hot-gpu", MetricTemperature, AtLeast, 90, events.SeverityCritical)

	if rule.Name() != "hot-gpu" {
		t.Errorf("Name() = %q, want hot-gpu", rule.Name())
	}
	if rule.Severity() != events.SeverityCritical {
		t.Errorf("Severity() = %q, want critical", rule.Severity())
	}
	if rule.Device != -1 {
		t.Errorf("Device = %d, want -1", rule.Device)
	}
}

func TestMetricNames(t *testing.T) {
	metrics := []Metric{MetricUtilization, MetricMemory, MetricTemperature, MetricPower, MetricFan}
	sample := gpuSample(0, 50)

	for _, m := range metrics {
		if _, ok := sampleValue(sample, m); !ok {
			t.Errorf("sampleValue(%q) not resolvable", m)
		}
		if strings.Contains(string(m), " ") {
			t.Errorf("metric %q contains whitespace", m)
		}
	}
}
