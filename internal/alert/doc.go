// Package alert turns the telemetry stream into raised and cleared
// alerts.
//
// # Rules
//
// A Rule inspects one GPU sample and returns a Verdict. ThresholdRule
// compares a single metric against a fixed bound (utilization above 80,
// temperature at or above 90). ScriptRule evaluates an operator-authored
// Lua predicate in a sandboxed interpreter for conditions a single
// comparison cannot express.
//
// # Engine
//
// The Engine subscribes to the telemetry kind family and runs every
// rule against each sample. Alerting is edge-triggered with hysteresis:
// the first firing sample opens an incident and publishes alert.raised;
// further firing samples stay silent; the first non-firing sample
// closes the incident and publishes alert.cleared carrying the same
// incident ID. Alert events are published fire-and-forget so a slow
// alert consumer can never stall telemetry processing.
//
// # Legacy bridge
//
// The Bridge accepts JSON metric payloads from older collectors on a
// name-channel and republishes them as typed sample events, giving the
// engine and every other consumer a single stream to watch.
package alert
