// Package metadata memoizes station and binding lookups for the lifetime of
// a pipeline instance.
package metadata

//go:generate mockgen -destination=mocks/mock_lookup.go -package=mocks -source=cache.go Lookup

import (
	"context"
	"sync"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

// Lookup is the relational source the cache reads through to.
type Lookup interface {
	FindStationByUUID(ctx context.Context, uuid string) (*models.Station, error)
	FetchStationBindings(ctx context.Context, stationKey int64) ([]models.Binding, error)
}

// Cache keeps stations (including negative results) and binding maps. Entries
// are never invalidated; errors are never cached.
type Cache struct {
	lookup Lookup

	mu       sync.RWMutex
	stations map[string]*models.Station
	bindings map[int64]map[string]models.Binding
}

// New creates an empty cache over lookup.
func New(lookup Lookup) *Cache {
	return &Cache{
		lookup:   lookup,
		stations: make(map[string]*models.Station),
		bindings: make(map[int64]map[string]models.Binding),
	}
}

// ResolveStation returns the station for uuid, or nil when none exists.
func (c *Cache) ResolveStation(ctx context.Context, uuid string) (*models.Station, error) {
	c.mu.RLock()
	st, ok := c.stations[uuid]
	c.mu.RUnlock()
	if ok {
		return st, nil
	}

	st, err := c.lookup.FindStationByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.stations[uuid]; ok {
		return existing, nil
	}
	c.stations[uuid] = st
	return st, nil
}

// ResolveBindings returns the station's bindings keyed by parameter code.
// An empty map means the station has no bindings.
func (c *Cache) ResolveBindings(ctx context.Context, stationKey int64) (map[string]models.Binding, error) {
	c.mu.RLock()
	m, ok := c.bindings[stationKey]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	list, err := c.lookup.FetchStationBindings(ctx, stationKey)
	if err != nil {
		return nil, err
	}
	m = make(map[string]models.Binding, len(list))
	for _, b := range list {
		m[b.Code] = b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.bindings[stationKey]; ok {
		return existing, nil
	}
	c.bindings[stationKey] = m
	return m, nil
}
