package telemetry

import (
	"context"
	"math/rand"
	"sync"
)

// SimSource generates plausible GPU metrics without hardware. Each
// device performs a bounded random walk around utilization, with
// temperature and power relaxing toward utilization-driven targets, so
// threshold rules and dashboards can be exercised in development.
type SimSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	devices []simDevice
}

type simDevice struct {
	utilization float64
	temperature float64
	powerDraw   float64
	memUsed     uint64
	memTotal    uint64
}

// NewSimSource creates a simulated source for the given device count.
// The seed fixes the walk, so a given seed always replays the same
// metric history.
func NewSimSource(devices int, seed int64) *SimSource {
	if devices < 1 {
		devices = 1
	}

	rng := rand.New(rand.NewSource(seed))
	s := &SimSource{
		rng:     rng,
		devices: make([]simDevice, devices),
	}
	for i := range s.devices {
		s.devices[i] = simDevice{
			utilization: 30 + rng.Float64()*40,
			temperature: 45 + rng.Float64()*15,
			powerDraw:   120 + rng.Float64()*60,
			memUsed:     4096 + uint64(rng.Intn(8192)),
			memTotal:    24576,
		}
	}
	return s
}

// Sample advances every device's walk one step and returns the readings.
func (s *SimSource) Sample(ctx context.Context) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Sample, len(s.devices))
	for i := range s.devices {
		d := &s.devices[i]

		d.utilization = clamp(d.utilization+s.rng.Float64()*20-10, 0, 100)

		// Temperature and power chase utilization rather than walking
		// freely, so a busy device heats up and an idle one cools off.
		tempTarget := 35 + d.utilization*0.5
		d.temperature = clamp(d.temperature+(tempTarget-d.temperature)*0.3+s.rng.Float64()*2-1, 30, 95)

		powerTarget := 80 + d.utilization*2.2
		d.powerDraw = clamp(d.powerDraw+(powerTarget-d.powerDraw)*0.3+s.rng.Float64()*10-5, 50, 450)

		memDelta := int64(s.rng.Intn(1024)) - 512
		memUsed := int64(d.memUsed) + memDelta
		if memUsed < 0 {
			memUsed = 0
		}
		if memUsed > int64(d.memTotal) {
			memUsed = int64(d.memTotal)
		}
		d.memUsed = uint64(memUsed)

		out[i] = Sample{
			Device:      i,
			Utilization: d.utilization,
			MemoryUsed:  d.memUsed,
			MemoryTotal: d.memTotal,
			Temperature: d.temperature,
			PowerDraw:   d.powerDraw,
			FanSpeed:    clamp((d.temperature-30)*2, 0, 100),
		}
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
