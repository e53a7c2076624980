// ABOUTME: Thread-safe TTL cache for non-revoked credential lookups
// ABOUTME: Invalidated synchronously on revoke/regenerate so stale entries never outlive a rotation

package validate

import (
	"sync"
	"time"

	"github.com/hookgate/hookgate/internal/store"
)

// cacheEntry stores a lookup result and when it was cached.
type cacheEntry struct {
	lookup   *store.CredentialLookup
	cachedAt time.Time
}

// credentialCache caches credential lookups keyed by token ID.
// Validation reads vastly outnumber writes, so a short TTL takes most
// lookups off the store; the token manager invalidates entries
// synchronously when a credential is revoked or rotated.
type credentialCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	done    chan struct{}
	closed  bool
}

// newCredentialCache creates a cache with the given TTL. A background
// goroutine periodically removes expired entries.
func newCredentialCache(ttl time.Duration) *credentialCache {
	c := &credentialCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached lookup for a token ID, or nil if absent or expired.
func (c *credentialCache) Get(tokenID string) *store.CredentialLookup {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tokenID]
	if !ok || time.Since(entry.cachedAt) >= c.ttl {
		return nil
	}
	return entry.lookup
}

// Put caches a lookup result.
func (c *credentialCache) Put(tokenID string, lookup *store.CredentialLookup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tokenID] = &cacheEntry{lookup: lookup, cachedAt: time.Now()}
}

// InvalidateToken removes one token's entry.
func (c *credentialCache) InvalidateToken(tokenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tokenID)
}

// Flush drops every entry. Used when tenant-level state changes and the
// affected token IDs are not known.
func (c *credentialCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *credentialCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *credentialCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for tokenID, entry := range c.entries {
		if now.Sub(entry.cachedAt) >= c.ttl {
			delete(c.entries, tokenID)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *credentialCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
