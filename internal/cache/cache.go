// Package cache implements the response/result cache (spec §4.9): a
// single-flight, TTL- and size-bounded cache of tool results and resource
// reads, with priority-aware eviction, pattern removal, and statistics.
//
// Single-flight collapsing is delegated to golang.org/x/sync/singleflight,
// which is exactly the "per-key in-flight future map" spec.md's Design
// Notes ask for. Durable storage of entries is delegated to
// hashicorp/golang-lru/v2/expirable for its built-in TTL sweep; this
// package layers priority, sliding-vs-absolute expiry, size accounting, and
// typed eviction reasons on top, since the library's own policy carries
// neither NeverRemove priority nor per-entry expiry kind.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Priority influences eviction order under capacity pressure: lower
// priorities are evicted first. NeverRemove is never chosen by a capacity
// pass.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	NeverRemove
)

// ExpiryKind selects which timestamp field on an entry controls its expiry.
type ExpiryKind int

const (
	ExpiryAbsolute ExpiryKind = iota
	ExpirySliding
)

// EvictReason records why an entry left the cache.
type EvictReason int

const (
	Expired EvictReason = iota
	Unused
	Removed
	Capacity
	Replaced
)

func (r EvictReason) String() string {
	switch r {
	case Expired:
		return "Expired"
	case Unused:
		return "Unused"
	case Removed:
		return "Removed"
	case Capacity:
		return "Capacity"
	case Replaced:
		return "Replaced"
	default:
		return "Unknown"
	}
}

// OnEvict is invoked after an entry leaves the cache for any reason.
type OnEvict func(key string, reason EvictReason)

// Options configure one cache entry set by Set/GetOrCompute.
type Options struct {
	Size       int64
	Priority   Priority
	Kind       ExpiryKind
	Expiry     time.Time     // absolute expiry instant, when Kind == ExpiryAbsolute
	Sliding    time.Duration // idle window, when Kind == ExpirySliding
	OnEvict    OnEvict
}

type entry struct {
	key          string
	value        any
	size         int64
	priority     Priority
	kind         ExpiryKind
	expiry       time.Time
	sliding      time.Duration
	createdAt    time.Time
	lastAccessAt time.Time
	onEvict      OnEvict
}

func (e *entry) expired(now time.Time) bool {
	switch e.kind {
	case ExpiryAbsolute:
		return !e.expiry.IsZero() && now.After(e.expiry)
	case ExpirySliding:
		return e.sliding > 0 && now.Sub(e.lastAccessAt) > e.sliding
	default:
		return false
	}
}

// Stats are the cumulative counters exposed by spec.md §4.9.
type Stats struct {
	EntryCount      int
	TotalSize       int64
	Hits            int64
	Misses          int64
	Evictions       int64
	EvictionsByKind map[EvictReason]int64
}

// Cache is the single-flight, size-bounded response/result cache.
type Cache struct {
	mu sync.Mutex

	store     *lru.LRU[string, *entry]
	group     singleflight.Group
	sizeLimit int64
	margin    float64
	defaultTTL time.Duration

	totalSize int64
	hits      int64
	misses    int64
	evictions int64
	byReason  map[EvictReason]int64

	pendingReasonMu sync.Mutex
	pendingReason   map[string]EvictReason
}

// New returns a cache bounded to sizeLimit bytes (0 = unlimited), evicting
// down to sizeLimit*(1-margin) under capacity pressure. defaultTTL is the
// underlying store's TTL: it runs from each insertion and applies to every
// entry, including entries that set their own Expiry or Sliding window and
// NeverRemove entries. An entry's own expiry can end its life sooner but not
// extend it past defaultTTL.
func New(sizeLimit int64, margin float64, defaultTTL time.Duration) *Cache {
	c := &Cache{
		sizeLimit:     sizeLimit,
		margin:        margin,
		defaultTTL:    defaultTTL,
		byReason:      make(map[EvictReason]int64),
		pendingReason: make(map[string]EvictReason),
	}
	c.store = lru.NewLRU[string, *entry](0, c.onLibraryEvict, defaultTTL)
	return c
}

// onLibraryEvict is invoked by the underlying LRU when IT decides to evict
// (its own TTL sweep). Absent an explicitly staged reason (set by Remove /
// Set-over-existing / a capacity pass), this is attributed to Expired.
func (c *Cache) onLibraryEvict(key string, e *entry) {
	c.pendingReasonMu.Lock()
	reason, staged := c.pendingReason[key]
	delete(c.pendingReason, key)
	c.pendingReasonMu.Unlock()
	if !staged {
		reason = Expired
	}
	c.recordEviction(e, reason)
}

func (c *Cache) recordEviction(e *entry, reason EvictReason) {
	c.totalSize -= e.size
	c.evictions++
	c.byReason[reason]++
	if e.onEvict != nil {
		e.onEvict(e.key, reason)
	}
}

func (c *Cache) stage(key string, reason EvictReason) {
	c.pendingReasonMu.Lock()
	c.pendingReason[key] = reason
	c.pendingReasonMu.Unlock()
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key string) (any, bool) {
	e, ok := c.store.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	now := time.Now()
	if e.expired(now) {
		c.stage(key, reasonFor(e))
		c.store.Remove(key)
		c.misses++
		return nil, false
	}
	e.lastAccessAt = now
	c.hits++
	return e.value, true
}

func reasonFor(e *entry) EvictReason {
	if e.kind == ExpirySliding {
		return Unused
	}
	return Expired
}

// Set inserts or replaces the value for key under opts, evicting the
// previous entry (if any) with reason Replaced, then runs a capacity pass.
func (c *Cache) Set(key string, value any, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, opts)
}

func (c *Cache) setLocked(key string, value any, opts Options) {
	if _, ok := c.store.Get(key); ok {
		c.stage(key, Replaced)
		c.store.Remove(key)
	}
	now := time.Now()
	e := &entry{
		key: key, value: value, size: opts.Size, priority: opts.Priority,
		kind: opts.Kind, expiry: opts.Expiry, sliding: opts.Sliding,
		createdAt: now, lastAccessAt: now, onEvict: opts.OnEvict,
	}
	c.store.Add(key, e)
	c.totalSize += e.size
	c.evictCapacityLocked()
}

// Remove deletes key, if present, with reason Removed. Succeeds silently if
// absent.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.store.Get(key); !ok {
		return
	}
	c.stage(key, Removed)
	c.store.Remove(key)
}

// Clear removes every entry with reason Removed.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.store.Keys() {
		c.stage(key, Removed)
		c.store.Remove(key)
	}
}

// RemoveByPattern removes every key matching a glob where `*` matches any
// substring and `?` matches a single character, anchored to the full key
// (spec.md §4.9 "Pattern removal"). Returns the count removed.
func (c *Cache) RemoveByPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, key := range c.store.Keys() {
		if globMatch(pattern, key) {
			c.stage(key, Removed)
			c.store.Remove(key)
			n++
		}
	}
	return n
}

// evictCapacityLocked evicts lowest (priority, staleness) entries until
// totalSize <= sizeLimit*(1-margin), skipping NeverRemove, per spec.md §4.9.
func (c *Cache) evictCapacityLocked() {
	if c.sizeLimit <= 0 || c.totalSize <= c.sizeLimit {
		return
	}
	target := int64(float64(c.sizeLimit) * (1 - c.margin))
	for c.totalSize > target {
		victim := c.pickVictimLocked()
		if victim == nil {
			return
		}
		c.stage(victim.key, Capacity)
		c.store.Remove(victim.key)
	}
}

func (c *Cache) pickVictimLocked() *entry {
	var victim *entry
	for _, key := range c.store.Keys() {
		e, ok := c.store.Peek(key)
		if !ok || e.priority == NeverRemove {
			continue
		}
		if victim == nil {
			victim = e
			continue
		}
		if e.priority < victim.priority {
			victim = e
			continue
		}
		if e.priority == victim.priority && e.lastAccessAt.Before(victim.lastAccessAt) {
			victim = e
		}
	}
	return victim
}

// GetOrCompute returns the cached value for key, computing it via producer
// if absent. Concurrent callers for the same key collapse onto a single
// producer invocation (spec.md invariant I5, property P6). On producer
// failure no entry is stored and every waiter observes the same error.
func (c *Cache) GetOrCompute(ctx context.Context, key string, opts Options, producer func(ctx context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if v, ok := c.getLocked(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if v, ok := c.getLocked(key); ok {
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.setLocked(key, value, opts)
		c.mu.Unlock()
		return value, nil
	})
	return v, err
}

// Stats returns a snapshot of the cache's cumulative counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	byReason := make(map[EvictReason]int64, len(c.byReason))
	for k, v := range c.byReason {
		byReason[k] = v
	}
	return Stats{
		EntryCount:      c.store.Len(),
		TotalSize:       c.totalSize,
		Hits:            c.hits,
		Misses:          c.misses,
		Evictions:       c.evictions,
		EvictionsByKind: byReason,
	}
}

// HitRatio returns hits / (hits+misses), or 0 if there has been no traffic.
func (c *Cache) HitRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// globMatch implements `*`/`?` glob matching anchored to the full string.
func globMatch(pattern, s string) bool {
	return globMatchRec(pattern, s)
}

func globMatchRec(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '*':
		if globMatchRec(pattern[1:], s) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if globMatchRec(pattern[1:], s[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if s == "" {
			return false
		}
		return globMatchRec(pattern[1:], s[1:])
	default:
		if s == "" || s[0] != pattern[0] {
			return false
		}
		return globMatchRec(pattern[1:], s[1:])
	}
}

// ResourceKey builds the cache key family used for resource reads, so the
// subscription manager can invalidate all cached reads for a URI (spec.md
// §4.8 step 3: "invalidate the response cache for the resource:<uri> key
// family").
func ResourceKey(uri string) string {
	return "resource:" + uri
}

// IsResourceKey reports whether key belongs to the resource:<uri> family,
// and returns the URI if so.
func IsResourceKey(key string) (string, bool) {
	const prefix = "resource:"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, prefix), true
}
