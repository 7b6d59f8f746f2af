package rbac

import (
	"sync"
	"time"
)

// permSet is the effective permission set of one (tenant, role) pair,
// keyed "module:action".
type permSet map[string]bool

type cacheKey struct {
	tenantID uint
	role     string
}

type cacheEntry struct {
	perms     permSet
	expiresAt time.Time
}

// permCache is a TTL cache over matrix lookups so authorization does not hit
// the database on every request. Writes to the matrix must call Invalidate.
type permCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
	ttl     time.Duration
}

func newPermCache(ttl time.Duration) *permCache {
	return &permCache{entries: make(map[cacheKey]*cacheEntry), ttl: ttl}
}

func (c *permCache) get(tenantID uint, role string) (permSet, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey{tenantID, role}]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.perms, true
}

func (c *permCache) put(tenantID uint, role string, perms permSet) {
	c.mu.Lock()
	c.entries[cacheKey{tenantID, role}] = &cacheEntry{perms: perms, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// invalidateTenant drops every cached role of one tenant. Called after a
// matrix write.
func (c *permCache) invalidateTenant(tenantID uint) {
	c.mu.Lock()
	for k := range c.entries {
		if k.tenantID == tenantID {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
