package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/resq-training/checklist-service/internal/models"
)

// DefaultFreshnessWindow is how long a snapshot stays fresh after a fetch.
const DefaultFreshnessWindow = 5 * time.Minute

// SnapshotListener is notified with the affected key on every Set and
// Invalidate. Listeners are expected to re-read Get(key) for the keys they
// care about; notifications are not filtered per key.
type SnapshotListener func(key string)

type snapshotEntry struct {
	items     []*models.ChecklistItem
	fetchedAt time.Time
}

// SnapshotCache is the in-memory keyed store for checklist item snapshots
// shared by every mounted view. Entries are replaced wholesale, never
// patched, so a snapshot handed out by Get is never mutated afterwards.
//
// Construct one per application (or per test) and pass it by reference;
// there is deliberately no package-level instance.
type SnapshotCache struct {
	mu        sync.RWMutex
	entries   map[string]snapshotEntry
	listeners map[int]SnapshotListener
	nextID    int
	window    time.Duration
	logger    *slog.Logger
}

func NewSnapshotCache(logger *slog.Logger) *SnapshotCache {
	return NewSnapshotCacheWithWindow(logger, DefaultFreshnessWindow)
}

func NewSnapshotCacheWithWindow(logger *slog.Logger, window time.Duration) *SnapshotCache {
	return &SnapshotCache{
		entries:   make(map[string]snapshotEntry),
		listeners: make(map[int]SnapshotListener),
		window:    window,
		logger:    logger,
	}
}

// Get returns the current snapshot for key, or an empty list if the key
// was never fetched or has been invalidated. It never blocks on I/O and
// never triggers a fetch.
func (c *SnapshotCache) Get(key string) []*models.ChecklistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return []*models.ChecklistItem{}
	}
	return entry.items
}

// IsStale reports whether key needs a refresh: true when never fetched,
// invalidated, or older than the freshness window. The cache never
// refreshes itself; callers decide.
func (c *SnapshotCache) IsStale(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return true
	}
	return time.Since(entry.fetchedAt) > c.window
}

// Set replaces the whole snapshot for key, refreshes its timestamp, and
// synchronously notifies every subscriber. Setting an empty list records
// a confirmed-empty, fresh result — distinct from Invalidate.
func (c *SnapshotCache) Set(key string, items []*models.ChecklistItem) {
	snapshot := make([]*models.ChecklistItem, len(items))
	copy(snapshot, items)

	c.mu.Lock()
	c.entries[key] = snapshotEntry{items: snapshot, fetchedAt: time.Now()}
	c.mu.Unlock()

	c.logger.Debug("Snapshot updated", "key", key, "items", len(snapshot))
	c.notify(key)
}

// Invalidate removes the entry for key entirely: subsequent Get returns
// empty and IsStale reports true until the next Set.
func (c *SnapshotCache) Invalidate(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if existed {
		c.logger.Debug("Snapshot invalidated", "key", key)
	}
	c.notify(key)
}

// InvalidateAll clears every key. Used on logout and hard refresh.
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.entries = make(map[string]snapshotEntry)
	c.mu.Unlock()

	c.logger.Debug("Snapshot cache cleared", "keys", len(keys))
	for _, key := range keys {
		c.notify(key)
	}
}

// Subscribe registers a global listener and returns its unsubscribe
// function. Unsubscribing twice is a no-op.
func (c *SnapshotCache) Subscribe(listener SnapshotListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// notify invokes listeners outside the lock so a listener may safely
// re-enter the cache (read or schedule a refresh) without deadlocking.
func (c *SnapshotCache) notify(key string) {
	c.mu.RLock()
	listeners := make([]SnapshotListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.RUnlock()

	for _, l := range listeners {
		l(key)
	}
}
