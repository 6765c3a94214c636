package telemetry

import "context"

// Sample is one point-in-time metrics reading for a single GPU device.
type Sample struct {
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

// Source is the vendor boundary for metric capture. Implementations
// query a driver or management library and return one reading per
// visible device. A Source does not publish; the Poller owns the
// capture cadence and the bus interaction.
type Source interface {
	// Sample captures current metrics for every visible device.
	Sample(ctx context.Context) ([]Sample, error)
}
