package event

import (
	"sort"
	"sync"

	"github.com/dshills/gpupulse/internal/event/kind"
)

// Registry manages subscriptions organized into kind-channels and
// name-channels. It is thread-safe for concurrent access. The mutex is
// never held while a handler runs: Match and MatchName copy snapshots out
// so dispatch proceeds lock-free and handlers may subscribe reentrantly.
type Registry struct {
	mu     sync.RWMutex
	kinds  map[kind.Kind][]*subscription
	names  map[string][]*subscription
	byID   map[string]*subscription
	locked map[kind.Kind]struct{}
}

// NewRegistry creates a new subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:  make(map[kind.Kind][]*subscription),
		names:  make(map[string][]*subscription),
		byID:   make(map[string]*subscription),
		locked: make(map[kind.Kind]struct{}),
	}
}

// Add adds a kind-channel subscription. The list is kept sorted by
// descending priority; equal priorities keep insertion order.
// Returns ErrKindLocked if the kind has been closed to new subscriptions.
func (r *Registry) Add(sub *subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := sub.Kind()
	if _, isLocked := r.locked[k]; isLocked {
		return ErrKindLocked
	}

	subs := append(r.kinds[k], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Config().Priority > subs[j].Config().Priority
	})
	r.kinds[k] = subs

	r.byID[sub.ID()] = sub
	return nil
}

// AddName adds a name-channel subscription. Locking never applies to
// name-channels.
func (r *Registry) AddName(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := sub.Name()
	subs := append(r.names[name], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Config().Priority > subs[j].Config().Priority
	})
	r.names[name] = subs

	r.byID[sub.ID()] = sub
}

// Remove removes a subscription by ID from whichever channel holds it.
func (r *Registry) Remove(subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.byID[subID]
	if !exists {
		return false
	}

	if sub.Name() != "" {
		r.removeFromNameLocked(sub)
	} else {
		r.removeFromKindLocked(sub)
	}

	delete(r.byID, subID)
	return true
}

func (r *Registry) removeFromKindLocked(sub *subscription) {
	k := sub.Kind()
	subs := r.kinds[k]
	for i, s := range subs {
		if s.ID() == sub.ID() {
			r.kinds[k] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.kinds[k]) == 0 {
		delete(r.kinds, k)
	}
}

func (r *Registry) removeFromNameLocked(sub *subscription) {
	name := sub.Name()
	subs := r.names[name]
	for i, s := range subs {
		if s.ID() == sub.ID() {
			r.names[name] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.names[name]) == 0 {
		delete(r.names, name)
	}
}

// Get returns a subscription by ID.
func (r *Registry) Get(subID string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.byID[subID]
	return sub, exists
}

// Lock closes the given kinds to new subscriptions. Existing subscriptions
// are unaffected.
func (r *Registry) Lock(kinds ...kind.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range kinds {
		r.locked[k] = struct{}{}
	}
}

// IsLocked reports whether the kind is closed to new subscriptions.
func (r *Registry) IsLocked(k kind.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, isLocked := r.locked[k]
	return isLocked
}

// Match returns a snapshot of the subscriptions reached by an event of the
// given kind: the kind's own channel plus every ancestor channel up to the
// root. The snapshot is stable-sorted by descending priority, so specific
// and ancestor subscriptions interleave by priority rather than by
// ancestor distance, and equal priorities keep their per-channel
// insertion order.
func (r *Registry) Match(k kind.Kind) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*subscription
	for _, lk := range k.Lineage() {
		all = append(all, r.kinds[lk]...)
	}
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Config().Priority > all[j].Config().Priority
	})
	return all
}

// MatchActive returns the Match snapshot with paused and cancelled
// subscriptions filtered out.
func (r *Registry) MatchActive(k kind.Kind) []*subscription {
	all := r.Match(k)
	if len(all) == 0 {
		return nil
	}

	result := make([]*subscription, 0, len(all))
	for _, sub := range all {
		if sub.IsActive() {
			result = append(result, sub)
		}
	}
	return result
}

// MatchName returns a snapshot of the subscriptions on a name-channel,
// sorted by descending priority.
func (r *Registry) MatchName(name string) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.names[name]
	if len(subs) == 0 {
		return nil
	}

	result := make([]*subscription, len(subs))
	copy(result, subs)
	return result
}

// MatchNameActive returns the MatchName snapshot with paused and cancelled
// subscriptions filtered out.
func (r *Registry) MatchNameActive(name string) []*subscription {
	all := r.MatchName(name)
	if len(all) == 0 {
		return nil
	}

	result := make([]*subscription, 0, len(all))
	for _, sub := range all {
		if sub.IsActive() {
			result = append(result, sub)
		}
	}
	return result
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// CountByKind returns the number of subscriptions on a specific kind-channel.
func (r *Registry) CountByKind(k kind.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.kinds[k])
}

// CountByName returns the number of subscriptions on a specific name-channel.
func (r *Registry) CountByName(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.names[name])
}

// CountActive returns the number of active subscriptions.
func (r *Registry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.byID {
		if sub.IsActive() {
			count++
		}
	}
	return count
}

// Kinds returns all kinds with subscriptions.
func (r *Registry) Kinds() []kind.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.kinds) == 0 {
		return nil
	}

	kinds := make([]kind.Kind, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// Names returns all name-channels with subscriptions.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.names) == 0 {
		return nil
	}

	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	return names
}

// Clear removes all subscriptions from both channel maps. The locked-kind
// set is kept; Clear resets membership, not channel policy. Intended for
// tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = make(map[kind.Kind][]*subscription)
	r.names = make(map[string][]*subscription)
	r.byID = make(map[string]*subscription)
}

// RemoveCancelled removes all cancelled subscriptions from the registry.
// Returns the number of subscriptions removed.
func (r *Registry) RemoveCancelled() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, sub := range r.byID {
		if !sub.IsCancelled() {
			continue
		}
		if sub.Name() != "" {
			r.removeFromNameLocked(sub)
		} else {
			r.removeFromKindLocked(sub)
		}
		delete(r.byID, id)
		removed++
	}
	return removed
}
