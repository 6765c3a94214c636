// Package events defines the strongly-typed events carried on the gpupulse bus.
//
// Each event type has a kind constant and a struct embedding event.Base.
// Events are grouped by their producing component:
//
//   - Telemetry events: per-device GPU metrics samples
//   - Config events: initial load, per-key change notifications
//   - Plan events: memory analyzer split-plan results
//   - Alert events: rule raise/clear incidents
//
// # Usage
//
// Events are created with their constructor, which stamps metadata:
//
//	import (
//	    "github.com/dshills/gpupulse/internal/event/events"
//	)
//
//	sample := events.NewGPUSample("telemetry", 0, 85.0, 20480, 24576, 71.0, 250.0, 60.0)
//	if err := bus.Publish(ctx, sample); err != nil {
//	    logger.Warn("publish failed", zap.Error(err))
//	}
//
// # Kind Naming Convention
//
// Kinds follow the hierarchical dot-notation:
//
//	<component>.<entity>[.<action>]
//
// Examples:
//   - telemetry.gpu
//   - config.changed
//   - plan.split
//   - alert.raised
//
// A subscription on an ancestor segment ("telemetry", "alert") receives
// every descendant event.
package events
