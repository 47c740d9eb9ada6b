package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	appbilling "github.com/cflow/backend/internal/application/billing"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

type circulationKey struct {
	buildingID uuid.UUID
	month      time.Time
}

type circulationEntry struct {
	cost      valueobject.Money
	expiresAt time.Time
}

// InMemoryCirculationCache implements CirculationCache using an in-memory
// map. Suitable for single-instance deployments and testing; expired entries
// are evicted lazily on read.
type InMemoryCirculationCache struct {
	mu      sync.RWMutex
	entries map[circulationKey]circulationEntry
	ttl     time.Duration
}

// NewInMemoryCirculationCache creates an in-memory circulation cache. A zero
// TTL means entries never expire and are dropped only by invalidation.
func NewInMemoryCirculationCache(ttl time.Duration) *InMemoryCirculationCache {
	return &InMemoryCirculationCache{
		entries: make(map[circulationKey]circulationEntry),
		ttl:     ttl,
	}
}

// Get returns the cached cost for a building and month
func (c *InMemoryCirculationCache) Get(_ context.Context, buildingID uuid.UUID, month time.Time) (valueobject.Money, bool, error) {
	c.mu.RLock()
	e, exists := c.entries[circulationKey{buildingID: buildingID, month: month}]
	c.mu.RUnlock()

	if !exists {
		return valueobject.Money{}, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, circulationKey{buildingID: buildingID, month: month})
		c.mu.Unlock()
		return valueobject.Money{}, false, nil
	}
	return e.cost, true, nil
}

// Set stores the cost for a building and month
func (c *InMemoryCirculationCache) Set(_ context.Context, buildingID uuid.UUID, month time.Time, cost valueobject.Money) error {
	e := circulationEntry{cost: cost}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[circulationKey{buildingID: buildingID, month: month}] = e
	c.mu.Unlock()
	return nil
}

// ClearBuilding drops every cached month of one building
func (c *InMemoryCirculationCache) ClearBuilding(_ context.Context, buildingID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.buildingID == buildingID {
			delete(c.entries, key)
		}
	}
	return nil
}

// Clear drops all cached entries
func (c *InMemoryCirculationCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[circulationKey]circulationEntry)
	c.mu.Unlock()
	return nil
}

// Ensure InMemoryCirculationCache implements CirculationCache
var _ appbilling.CirculationCache = (*InMemoryCirculationCache)(nil)
