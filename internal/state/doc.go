// Package state maintains the monitor's current view of the system: the
// latest sample per GPU, configuration values as they change, and the most
// recent analyzer plan.
//
// The store subscribes at high priority, so by the time normal-priority
// consumers (alert rules, exporters) see an event, Snapshot already reflects
// it. Snapshots are copies and share no memory with the store.
package state
