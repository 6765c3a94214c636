// Package telemetry produces the GPU metric events that feed the
// monitoring pipeline.
//
// A Source is the vendor boundary: it captures one Sample per visible
// device when asked and knows nothing about the bus. The Poller owns
// the cadence. It ticks at a fixed interval, captures from its Source,
// and publishes each reading as a typed event through the bus's
// isolated path so downstream processing runs on the shared CPU pool
// instead of the capture goroutine.
//
// Publish rejections (pool saturation, bus shutdown) drop the sample
// with a log line. Telemetry is periodic; the next tick supersedes
// anything a retry would deliver.
//
// SimSource stands in for real hardware during development and in
// tests, generating a seeded random walk with utilization-correlated
// temperature and power.
package telemetry
