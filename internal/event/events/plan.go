package events

import (
	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/kind"
)

// Split-plan event kinds.
const (
	// KindPlan is the ancestor of every analyzer plan event.
	KindPlan kind.Kind = "plan"

	// KindPlanSplit is published when the memory analyzer computes a
	// model split plan across devices.
	KindPlanSplit kind.Kind = "plan.split"
)

// DeviceAssignment is one device's share of a split plan.
type DeviceAssignment struct {
	// Device is the zero-based device index.
	Device int

	// Layers is the number of model layers assigned to the device.
	Layers int

	// VRAMBudgetMiB is the memory budget the assignment was computed
	// against, in MiB.
	VRAMBudgetMiB uint64
}

// SplitPlan carries the result of a memory/optimization analysis:
// per-device layer assignments and whether the model fits.
type SplitPlan struct {
	event.Base

	// Assignments lists the per-device layer assignments.
	Assignments []DeviceAssignment

	// TotalLayers is the number of layers the plan distributes.
	TotalLayers int

	// Feasible is false when the model does not fit the available budget.
	Feasible bool

	// Reason describes why an infeasible plan failed.
	Reason string
}

// NewSplitPlan creates a split-plan result event.
func NewSplitPlan(source string, assignments []DeviceAssignment, totalLayers int, feasible bool, reason string) SplitPlan {
	return SplitPlan{
		Base:        event.NewBase(source),
		Assignments: assignments,
		TotalLayers: totalLayers,
		Feasible:    feasible,
		Reason:      reason,
	}
}

// EventKind returns the event's kind.
func (SplitPlan) EventKind() kind.Kind {
	return KindPlanSplit
}
