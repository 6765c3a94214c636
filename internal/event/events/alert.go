package events

import (
	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/kind"
)

// Alert event kinds.
const (
	// KindAlert is the ancestor of every alert event.
	KindAlert kind.Kind = "alert"

	// KindAlertRaised is published when an alert rule fires.
	KindAlertRaised kind.Kind = "alert.raised"

	// KindAlertCleared is published when a firing alert's condition stops holding.
	KindAlertCleared kind.Kind = "alert.cleared"
)

// Severity classifies how urgent an alert is.
type Severity string

// Alert severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether s is a recognized severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// AlertRaised is published when an alert rule fires. The incident ID links
// the raise to its eventual clear.
type AlertRaised struct {
	event.Base

	// IncidentID identifies the raise/clear pair.
	IncidentID string

	// Rule is the name of the rule that fired.
	Rule string

	// Device is the device the rule fired for.
	Device int

	// Metric is the metric the rule evaluated (e.g., "utilization").
	Metric string

	// Value is the observed metric value.
	Value float64

	// Bound is the rule's threshold.
	Bound float64

	// Severity classifies the alert.
	Severity Severity

	// Message is a human-readable description.
	Message string
}

// NewAlertRaised creates an alert-raised event.
func NewAlertRaised(source, incidentID, rule string, device int, metric string, value, bound float64, severity Severity, message string) AlertRaised {
	return AlertRaised{
		Base:       event.NewBase(source),
		IncidentID: incidentID,
		Rule:       rule,
		Device:     device,
		Metric:     metric,
		Value:      value,
		Bound:      bound,
		Severity:   severity,
		Message:    message,
	}
}

// EventKind returns the event's kind.
func (AlertRaised) EventKind() kind.Kind {
	return KindAlertRaised
}

// DeviceIndex returns the device index for device-scoped filtering.
func (a AlertRaised) DeviceIndex() int {
	return a.Device
}

// AlertCleared is published when a firing alert's condition stops holding.
type AlertCleared struct {
	event.Base

	// IncidentID matches the AlertRaised that opened the incident.
	IncidentID string

	// Rule is the name of the rule that cleared.
	Rule string

	// Device is the device the rule cleared for.
	Device int

	// Metric is the metric the rule evaluated.
	Metric string

	// Value is the observed metric value at clear time.
	Value float64
}

// NewAlertCleared creates an alert-cleared event.
func NewAlertCleared(source, incidentID, rule string, device int, metric string, value float64) AlertCleared {
	return AlertCleared{
		Base:       event.NewBase(source),
		IncidentID: incidentID,
		Rule:       rule,
		Device:     device,
		Metric:     metric,
		Value:      value,
	}
}

// EventKind returns the event's kind.
func (AlertCleared) EventKind() kind.Kind {
	return KindAlertCleared
}

// DeviceIndex returns the device index for device-scoped filtering.
func (a AlertCleared) DeviceIndex() int {
	return a.Device
}
