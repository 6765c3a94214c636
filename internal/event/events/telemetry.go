package events

import (
	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/kind"
)

// Telemetry event kinds.
const (
	// KindTelemetry is the ancestor of every telemetry event.
	KindTelemetry kind.Kind = "telemetry"

	// KindTelemetryGPU is published for each captured GPU metrics sample.
	KindTelemetryGPU kind.Kind = "telemetry.gpu"
)

// GPUSample carries one captured set of metrics for a single GPU device.
type GPUSample struct {
	event.Base

	// Device is the zero-based device index.
	Device int

	// Utilization is the GPU utilization percentage (0-100).
	Utilization float64

	// MemoryUsed is the used device memory in MiB.
	MemoryUsed uint64

	// MemoryTotal is the total device memory in MiB.
	MemoryTotal uint64

	// Temperature is the core temperature in degrees Celsius.
	Temperature float64

	// PowerDraw is the board power draw in watts.
	PowerDraw float64

	// FanSpeed is the fan speed percentage (0-100).
	FanSpeed float64
}

// NewGPUSample creates a GPU metrics sample event.
func NewGPUSample(source string, device int, utilization float64, memUsed, memTotal uint64, temperature, powerDraw, fanSpeed float64) GPUSample {
	return GPUSample{
		Base:        event.NewBase(source),
		Device:      device,
		Utilization: utilization,
		MemoryUsed:  memUsed,
		MemoryTotal: memTotal,
		Temperature: temperature,
		PowerDraw:   powerDraw,
		FanSpeed:    fanSpeed,
	}
}

// EventKind returns the sample's kind.
func (GPUSample) EventKind() kind.Kind {
	return KindTelemetryGPU
}

// DeviceIndex returns the device index for device-scoped filtering.
func (s GPUSample) DeviceIndex() int {
	return s.Device
}

// MemoryUtilization returns used memory as a percentage of total.
// Returns 0 when the total is unknown.
func (s GPUSample) MemoryUtilization() float64 {
	if s.MemoryTotal == 0 {
		return 0
	}
	return float64(s.MemoryUsed) / float64(s.MemoryTotal) * 100
}
