package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/gpupulse/internal/event/events"
)

// Rule errors.
var (
	// ErrInvalidRule is returned when a rule's configuration is incomplete.
	ErrInvalidRule = errors.New("invalid alert rule")

	// ErrUnknownMetric is returned when a rule names a metric no sample carries.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrUnknownComparison is returned when a rule's comparison is not recognized.
	ErrUnknownComparison = errors.New("unknown comparison")
)

// Metric selects which sample quantity a rule evaluates.
type Metric string

// Metrics a threshold rule can evaluate. MetricMemory is used memory as
// a percentage of total, not raw MiB.
const (
	MetricUtilization Metric = "utilization"
	MetricMemory      Metric = "memory"
	MetricTemperature Metric = "temperature"
	MetricPower       Metric = "power"
	MetricFan         Metric = "fan"
)

// sampleValue extracts the metric's value from a sample.
func sampleValue(sample events.GPUSample, m Metric) (float64, bool) {
	switch m {
	case MetricUtilization:
		return sample.Utilization, true
	case MetricMemory:
		return sample.MemoryUtilization(), true
	case MetricTemperature:
		return sample.Temperature, true
	case MetricPower:
		return sample.PowerDraw, true
	case MetricFan:
		return sample.FanSpeed, true
	default:
		return 0, false
	}
}

// Comparison is the operator a threshold rule applies to its bound.
type Comparison string

// Comparisons.
const (
	Above   Comparison = "above"
	Below   Comparison = "below"
	AtLeast Comparison = "at_least"
	AtMost  Comparison = "at_most"
)

// holds reports whether value satisfies the comparison against bound.
func (c Comparison) holds(value, bound float64) (bool, error) {
	switch c {
	case Above:
		return value > bound, nil
	case Below:
		return value < bound, nil
	case AtLeast:
		return value >= bound, nil
	case AtMost:
		return value <= bound, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownComparison, c)
	}
}

// describe returns the comparison phrased for an alert message.
func (c Comparison) describe() string {
	switch c {
	case Above:
		return "above"
	case Below:
		return "below"
	case AtLeast:
		return "at or above"
	case AtMost:
		return "at or below"
	default:
		return string(c)
	}
}

// Verdict is the outcome of evaluating one rule against one sample.
type Verdict struct {
	// Firing reports whether the rule's condition holds.
	Firing bool

	// Metric names the evaluated quantity for the alert payload.
	Metric string

	// Value is the observed value.
	Value float64

	// Bound is the rule's threshold.
	Bound float64

	// Message optionally replaces the engine's composed description.
	Message string
}

// Rule decides whether a GPU sample should raise an alert.
type Rule interface {
	// Name identifies the rule in alert payloads and logs.
	Name() string

	// Severity classifies alerts raised by this rule.
	Severity() events.Severity

	// Evaluate inspects one sample. A non-firing verdict closes any
	// incident the rule holds open for the sample's device.
	Evaluate(ctx context.Context, sample events.GPUSample) (Verdict, error)
}

// ThresholdRule fires while a single metric violates a fixed bound.
type ThresholdRule struct {
	// RuleName identifies the rule.
	RuleName string

	// Metric is the sample quantity to evaluate.
	Metric Metric

	// Compare is the operator applied to Bound.
	Compare Comparison

	// Bound is the threshold.
	Bound float64

	// Level is the severity of alerts this rule raises.
	Level events.Severity

	// Device restricts the rule to one device index. Negative applies
	// the rule to every device; NewThresholdRule sets -1.
	Device int
}

// NewThresholdRule creates a rule that applies to every device.
func NewThresholdRule(name string, metric Metric, compare Comparison, bound float64, level events.Severity) *ThresholdRule {
	return &ThresholdRule{
		RuleName: name,
		Metric:   metric,
		Compare:  compare,
		Bound:    bound,
		Level:    level,
		Device:   -1,
	}
}

// Name returns the rule's name.
func (r *ThresholdRule) Name() string {
	return r.RuleName
}

// Severity returns the severity of alerts this rule raises.
func (r *ThresholdRule) Severity() events.Severity {
	return r.Level
}

// Validate checks the rule's configuration.
func (r *ThresholdRule) Validate() error {
	if r.RuleName == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidRule)
	}
	if _, ok := sampleValue(events.GPUSample{}, r.Metric); !ok {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRule, r.RuleName, ErrUnknownMetric)
	}
	if _, err := r.Compare.holds(0, 0); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRule, r.RuleName, ErrUnknownComparison)
	}
	if !r.Level.IsValid() {
		return fmt.Errorf("%w: %q: severity %q", ErrInvalidRule, r.RuleName, r.Level)
	}
	return nil
}

// Evaluate reports whether the sample violates the rule's bound.
func (r *ThresholdRule) Evaluate(_ context.Context, sample events.GPUSample) (Verdict, error) {
	if r.Device >= 0 && sample.Device != r.Device {
		return Verdict{}, nil
	}

	value, ok := sampleValue(sample, r.Metric)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %q", ErrUnknownMetric, r.Metric)
	}

	firing, err := r.Compare.holds(value, r.Bound)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{
		Firing: firing,
		Metric: string(r.Metric),
		Value:  value,
		Bound:  r.Bound,
	}
	if firing {
		v.Message = fmt.Sprintf("device %d: %s %.1f is %s bound %.1f",
			sample.Device, r.Metric, value, r.Compare.describe(), r.Bound)
	}
	return v, nil
}
