// Package kind defines the hierarchical event-kind tags used by the
// event bus.
//
// Kinds use dot notation, and the dots are the hierarchy itself: the
// ancestors of "telemetry.gpu.metrics" are "telemetry.gpu" and
// "telemetry", and every kind descends from the root Any. A handler
// subscribed to an ancestor kind receives all descendant events, which
// lets consumers pick their granularity:
//
//	bus.Subscribe(kind.Kind("telemetry"), h)     // all telemetry
//	bus.Subscribe(kind.Kind("telemetry.gpu"), h) // GPU samples only
//	bus.Subscribe(kind.Any, h)                   // everything
//
// The hierarchy is declared statically by the kind constants in the
// events package; dispatch resolves it with Lineage, a plain prefix
// walk.
package kind
