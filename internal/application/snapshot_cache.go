package application

import (
	"strings"
	"sync"
	"time"

	"github.com/example/resource-booking/internal/availability"
)

// usageCache stores recently computed usage summaries so repeated overview
// queries for the same slot do not rescan the reservation table while nothing
// has changed. Entries expire on TTL and the whole cache is dropped after any
// reservation mutation.
type usageCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]usageCacheEntry
}

type usageSnapshot struct {
	rooms   availability.RoomUsage
	devices availability.DeviceUsage
}

type usageCacheEntry struct {
	snapshot  usageSnapshot
	expiresAt time.Time
}

func newUsageCache(ttl time.Duration, maxEntries int, now func() time.Time) *usageCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &usageCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]usageCacheEntry),
	}
}

func (c *usageCache) Get(key string) (usageSnapshot, bool) {
	if c == nil {
		return usageSnapshot{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return usageSnapshot{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return usageSnapshot{}, false
	}
	return entry.snapshot, true
}

func (c *usageCache) Store(key string, snapshot usageSnapshot) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = usageCacheEntry{snapshot: snapshot, expiresAt: expiry}
}

func (c *usageCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]usageCacheEntry)
	c.mu.Unlock()
}

func (c *usageCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *usageCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func buildUsageCacheKey(resourceType availability.ResourceType, period availability.Period, date time.Time) string {
	builder := strings.Builder{}
	builder.WriteString(string(resourceType))
	builder.WriteString("|")
	builder.WriteString(period.Name)
	builder.WriteString("|")
	builder.WriteString(date.UTC().Format(time.RFC3339))
	return builder.String()
}
