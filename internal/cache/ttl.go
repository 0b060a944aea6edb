package cache

import (
	"sync"
	"time"
)

// TTLCache is a time-boxed key/value store with per-entry expiry.
// Reads that hit an expired entry delete it immediately; expired
// entries never survive a lookup. The entry count is capped and the
// least recently accessed entry is evicted once the cap is reached.
type TTLCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	defaultTTL time.Duration
	maxEntries int
	stats      Stats

	// now is swappable for tests
	now func() time.Time
}

type cacheEntry struct {
	value    any
	expires  time.Time
	accessed time.Time
}

// Stats tracks cache effectiveness counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// NewTTLCache creates a cache with the given default TTL and maximum
// entry count. A maxEntries of 0 disables the cap.
func NewTTLCache(defaultTTL time.Duration, maxEntries int) *TTLCache {
	return &TTLCache{
		entries:    make(map[string]*cacheEntry),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves a value if present and not expired. An entry whose
// expiry is at or before now counts as a miss and is removed.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return nil, false
	}

	if !entry.expires.After(c.now()) {
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false
	}

	entry.accessed = c.now()
	c.stats.Hits++
	return entry.value, true
}

// Set stores a value using the instance default TTL.
func (c *TTLCache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL. A non-positive TTL
// falls back to the instance default.
func (c *TTLCache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}

	now := c.now()
	c.entries[key] = &cacheEntry{
		value:    value,
		expires:  now.Add(ttl),
		accessed: now,
	}
}

// Delete removes a key unconditionally.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache counters.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	return stats
}

// evictLRU removes the least recently accessed entry. Caller must hold
// the lock.
func (c *TTLCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessed.Before(oldestTime) {
			oldestTime = entry.accessed
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}
