package fetch

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache is the time-bounded signal cache consulted by the fallback chain.
// Values are stored as JSON so the in-memory and Redis backends behave
// identically. An expired entry is treated as absent, never returned stale.
type Cache interface {
	// Get unmarshals the cached value for key into dest and reports whether
	// a non-expired entry existed.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// TTLCache is the in-memory Cache backend with per-entry expiration and
// LRU eviction once maxEntries is reached.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	maxEntries int64

	now func() time.Time // injectable for tests

	stopOnce sync.Once
	stopCh   chan struct{}
}

type cacheEntry struct {
	payload  []byte
	expires  time.Time
	accessed time.Time
}

// NewTTLCache creates an in-memory cache holding at most maxEntries values.
func NewTTLCache(maxEntries int64) *TTLCache {
	c := &TTLCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get implements Cache.
func (c *TTLCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return false, nil
	}
	entry.accessed = c.now()
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Cache.
func (c *TTLCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if int64(len(c.entries)) >= c.maxEntries {
		c.evictLRU()
	}
	c.entries[key] = &cacheEntry{
		payload:  payload,
		expires:  c.now().Add(ttl),
		accessed: c.now(),
	}
	return nil
}

// Stop shuts down the cleanup goroutine.
func (c *TTLCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// evictLRU removes the least recently accessed entry. Caller holds the lock.
func (c *TTLCache) evictLRU() {
	var oldestKey string
	oldest := c.now()
	for key, entry := range c.entries {
		if entry.accessed.Before(oldest) {
			oldest = entry.accessed
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *TTLCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *TTLCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
}
