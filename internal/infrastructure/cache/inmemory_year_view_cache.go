package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
)

// InMemoryYearViewCache is a process-local YearViewCache. Suitable for
// single-instance deployments and tests; instances do not share entries,
// so multi-instance deployments should use Redis instead.
type InMemoryYearViewCache struct {
	mu      sync.RWMutex
	entries map[string]inMemoryYearViewEntry
	ttl     time.Duration
}

type inMemoryYearViewEntry struct {
	cached    *appbilling.CachedYearView
	expiresAt time.Time
}

// NewInMemoryYearViewCache creates an in-memory year view cache. A zero
// TTL disables expiry.
func NewInMemoryYearViewCache(ttl time.Duration) *InMemoryYearViewCache {
	return &InMemoryYearViewCache{
		entries: make(map[string]inMemoryYearViewEntry),
		ttl:     ttl,
	}
}

// Get returns the cached year view, or nil on a miss or expired entry
func (c *InMemoryYearViewCache) Get(_ context.Context, clientID, unitID uuid.UUID, fiscalYear int) (*appbilling.CachedYearView, error) {
	key := yearViewKey(clientID, unitID, fiscalYear)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	return entry.cached, nil
}

// Set stores a rendered year view
func (c *InMemoryYearViewCache) Set(_ context.Context, clientID, unitID uuid.UUID, fiscalYear int, view *appbilling.CachedYearView) error {
	entry := inMemoryYearViewEntry{cached: view}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[yearViewKey(clientID, unitID, fiscalYear)] = entry
	c.mu.Unlock()
	return nil
}

// Invalidate drops the cached year view
func (c *InMemoryYearViewCache) Invalidate(_ context.Context, clientID, unitID uuid.UUID, fiscalYear int) error {
	c.mu.Lock()
	delete(c.entries, yearViewKey(clientID, unitID, fiscalYear))
	c.mu.Unlock()
	return nil
}

var _ appbilling.YearViewCache = (*InMemoryYearViewCache)(nil)
