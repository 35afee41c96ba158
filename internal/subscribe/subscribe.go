// Package subscribe implements the resource subscription manager
// (spec §4.8): multi-producer, multi-subscriber fan-out of update events
// keyed by URI, grounded on the session-map pattern in the MCP Go SDK's
// StreamableHTTPHandler (sessions keyed by id, snapshot-then-iterate
// broadcast, lazy pruning of dead entries on encounter).
package subscribe

import "sync"

// Observer is one (connection, uri) subscription. Deliver is called with
// the URI whose update fired; the subscription manager does not interpret
// the return value, but a delivery failure should be logged by the caller
// of Notify and must never block delivery to other observers.
type Observer struct {
	ConnID  string
	Deliver func(uri string) error
}

// CacheInvalidator is the narrow cache dependency Notify uses to evict the
// resource:<uri> key family on update (spec.md §4.8 step 3).
type CacheInvalidator interface {
	RemoveByPattern(pattern string) int
}

// Manager tracks, per URI, the set of subscribed observers.
type Manager struct {
	mu        sync.Mutex
	observers map[string]map[string]*Observer // uri -> connID -> observer
	cache     CacheInvalidator
}

// New returns an empty subscription manager. cache may be nil if cache
// invalidation on update is not wired (e.g. in tests).
func New(cache CacheInvalidator) *Manager {
	return &Manager{observers: make(map[string]map[string]*Observer), cache: cache}
}

// Subscribe registers obs for uri. Idempotent per (connection, uri): a
// second Subscribe for the same pair replaces the prior Deliver func.
func (m *Manager) Subscribe(uri string, obs *Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.observers[uri]
	if !ok {
		set = make(map[string]*Observer)
		m.observers[uri] = set
	}
	set[obs.ConnID] = obs
}

// Unsubscribe removes every observer for (connID, uri). Succeeds silently
// if none existed.
func (m *Manager) Unsubscribe(uri, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.observers[uri]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(m.observers, uri)
	}
}

// UnsubscribeConnection removes every subscription belonging to connID,
// across all URIs. Called on connection close (spec.md §3 "Subscription"
// lifecycle).
func (m *Manager) UnsubscribeConnection(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uri, set := range m.observers {
		delete(set, connID)
		if len(set) == 0 {
			delete(m.observers, uri)
		}
	}
}

// Notify fans an update for uri out to every current subscriber. A snapshot
// of the observer set is taken before delivery so a concurrent
// Subscribe/Unsubscribe during fan-out cannot fault the walk (spec.md
// §4.8 step 1). One observer's delivery failure never blocks another's
// (spec.md §4.8, property P8). Returns the delivery errors keyed by
// connection id, for the caller to log.
func (m *Manager) Notify(uri string) map[string]error {
	m.mu.Lock()
	set := m.observers[uri]
	snapshot := make([]*Observer, 0, len(set))
	for _, obs := range set {
		snapshot = append(snapshot, obs)
	}
	m.mu.Unlock()

	errs := make(map[string]error)
	for _, obs := range snapshot {
		if err := obs.Deliver(uri); err != nil {
			errs[obs.ConnID] = err
		}
	}

	if m.cache != nil {
		m.cache.RemoveByPattern("resource:" + uri)
	}
	return errs
}

// Count returns the number of distinct observers subscribed to uri, for
// tests and diagnostics.
func (m *Manager) Count(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers[uri])
}
