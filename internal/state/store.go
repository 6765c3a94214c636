package state

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/events"
)

// Store errors.
var (
	// ErrStoreRunning is returned when Start is called on a running store.
	ErrStoreRunning = errors.New("state store is already running")

	// ErrStoreNotRunning is returned when Stop is called on a stopped store.
	ErrStoreNotRunning = errors.New("state store is not running")
)

// DeviceState is the latest observed reading for one GPU.
type DeviceState struct {
	// Device is the zero-based device index.
	Device int

	// Utilization is GPU utilization in percent.
	Utilization float64

	// MemoryUsed is device memory in use, in MiB.
	MemoryUsed uint64

	// MemoryTotal is total device memory, in MiB.
	MemoryTotal uint64

	// Temperature is the die temperature in degrees Celsius.
	Temperature float64

	// PowerDraw is the board power draw in watts.
	PowerDraw float64

	// FanSpeed is the fan duty cycle in percent.
	FanSpeed float64

	// UpdatedAt is the timestamp of the sample this state came from.
	UpdatedAt time.Time
}

// Snapshot is a point-in-time copy of everything the store tracks.
// It shares no memory with the store; readers can hold it freely.
type Snapshot struct {
	// Devices holds the latest state per device, ordered by index.
	Devices []DeviceState

	// Config holds the latest value per configuration key that has
	// changed since startup.
	Config map[string]any

	// Plan is the most recent split plan, or nil before the first.
	Plan *events.SplitPlan

	// UpdatedAt is when the store last absorbed an event.
	UpdatedAt time.Time
}

// Store maintains the latest per-device telemetry, configuration values,
// and analyzer plan. It subscribes at high priority so its view is current
// before normal-priority consumers of the same event run.
type Store struct {
	subscriber *event.Subscriber
	logger     *zap.Logger

	mu        sync.RWMutex
	devices   map[int]DeviceState
	config    map[string]any
	plan      *events.SplitPlan
	updatedAt time.Time
	running   bool

	samples       atomic.Uint64
	configChanges atomic.Uint64
	plans         atomic.Uint64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store's logger.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a state store attached to the bus. Call Start to begin
// absorbing events.
func NewStore(bus event.Bus, opts ...StoreOption) *Store {
	s := &Store{
		subscriber: event.NewSubscriber(bus),
		logger:     zap.NewNop(),
		devices:    make(map[int]DeviceState),
		config:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to telemetry, configuration-change, and plan events.
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrStoreRunning
	}

	if _, err := s.subscriber.SubscribeHigh(events.KindTelemetry, event.HandlerFunc(s.handleTelemetry)); err != nil {
		return err
	}
	if _, err := s.subscriber.SubscribeHigh(events.KindConfigChanged, event.HandlerFunc(s.handleConfig)); err != nil {
		s.subscriber.UnsubscribeAll()
		return err
	}
	if _, err := s.subscriber.SubscribeHigh(events.KindPlanSplit, event.HandlerFunc(s.handlePlan)); err != nil {
		s.subscriber.UnsubscribeAll()
		return err
	}

	s.running = true
	s.logger.Info("state store started")
	return nil
}

// Stop unsubscribes from the bus. The store keeps its last snapshot and
// cannot be restarted.
func (s *Store) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrStoreNotRunning
	}
	s.running = false

	if err := s.subscriber.Close(); err != nil {
		return err
	}
	s.logger.Info("state store stopped",
		zap.Uint64("samples", s.samples.Load()),
		zap.Uint64("config_changes", s.configChanges.Load()),
		zap.Uint64("plans", s.plans.Load()))
	return nil
}

// IsRunning reports whether the store is absorbing events.
func (s *Store) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Store) handleTelemetry(_ context.Context, evt any) error {
	sample, ok := evt.(events.GPUSample)
	if !ok {
		return nil
	}
	s.samples.Add(1)

	when := sample.EventMetadata().Timestamp

	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices[sample.Device] = DeviceState{
		Device:      sample.Device,
		Utilization: sample.Utilization,
		MemoryUsed:  sample.MemoryUsed,
		MemoryTotal: sample.MemoryTotal,
		Temperature: sample.Temperature,
		PowerDraw:   sample.PowerDraw,
		FanSpeed:    sample.FanSpeed,
		UpdatedAt:   when,
	}
	if when.After(s.updatedAt) {
		s.updatedAt = when
	}
	return nil
}

func (s *Store) handleConfig(_ context.Context, evt any) error {
	change, ok := evt.(events.ConfigChanged)
	if !ok {
		return nil
	}
	s.configChanges.Add(1)

	when := change.EventMetadata().Timestamp

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config[change.Key] = change.NewValue
	if when.After(s.updatedAt) {
		s.updatedAt = when
	}
	return nil
}

func (s *Store) handlePlan(_ context.Context, evt any) error {
	plan, ok := evt.(events.SplitPlan)
	if !ok {
		return nil
	}
	s.plans.Add(1)

	when := plan.EventMetadata().Timestamp

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := plan
	kept.Assignments = append([]events.DeviceAssignment(nil), plan.Assignments...)
	s.plan = &kept
	if when.After(s.updatedAt) {
		s.updatedAt = when
	}
	return nil
}

// Snapshot returns a copy of the store's current view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Devices:   make([]DeviceState, 0, len(s.devices)),
		Config:    make(map[string]any, len(s.config)),
		UpdatedAt: s.updatedAt,
	}
	for _, d := range s.devices {
		snap.Devices = append(snap.Devices, d)
	}
	sort.Slice(snap.Devices, func(i, j int) bool {
		return snap.Devices[i].Device < snap.Devices[j].Device
	})
	for k, v := range s.config {
		snap.Config[k] = v
	}
	if s.plan != nil {
		plan := *s.plan
		plan.Assignments = append([]events.DeviceAssignment(nil), s.plan.Assignments...)
		snap.Plan = &plan
	}
	return snap
}

// Device returns the latest state for one device.
func (s *Store) Device(index int) (DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[index]
	return d, ok
}

// ConfigValue returns the latest value for a configuration key that has
// changed since startup.
func (s *Store) ConfigValue(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.config[key]
	return v, ok
}

// Stats returns store counters.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	devices := len(s.devices)
	s.mu.RUnlock()

	return StoreStats{
		Samples:       s.samples.Load(),
		ConfigChanges: s.configChanges.Load(),
		Plans:         s.plans.Load(),
		Devices:       devices,
	}
}

// StoreStats contains store counters.
type StoreStats struct {
	// Samples is the number of telemetry samples absorbed.
	Samples uint64

	// ConfigChanges is the number of configuration changes absorbed.
	ConfigChanges uint64

	// Plans is the number of split plans absorbed.
	Plans uint64

	// Devices is the number of devices with recorded state.
	Devices int
}
