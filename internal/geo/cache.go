package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	OriginSeed     = "seed"
	OriginGeocoder = "geocoder"
	OriginManual   = "manual"
)

// Entry is one persisted coordinate record.
type Entry struct {
	State       string
	City        string
	Coordinates Coordinates
	Origin      string
	ResolvedAt  time.Time
}

// Key returns the normalized lookup key of the entry.
func (e Entry) Key() Key {
	return NewKey(e.City, e.State)
}

// CoordinateStore persists geocoded cities across processes.
type CoordinateStore interface {
	LookupCoordinates(ctx context.Context, key Key) (Coordinates, bool, error)
	SaveCoordinates(ctx context.Context, entry Entry) error
	DeleteCoordinates(ctx context.Context, key Key) (bool, error)
}

// ErrSeedEntry is returned by Forget for a city that only exists in the
// embedded seed table. Seed values are replaced with a stored override.
var ErrSeedEntry = errors.New("city is part of the embedded seed table")

// Cache is a read-through coordinate table. Lookups consult resolved entries
// in memory, then the store, then the embedded seed, so a stored correction
// always shadows a seed value.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Coordinates
	seed    map[Key]Coordinates
	store   CoordinateStore
	log     *logrus.Entry
}

// NewCache returns a cache backed by the embedded seed table.
// store may be nil.
func NewCache(store CoordinateStore) *Cache {
	c := NewEmptyCache(store)
	for k, v := range loadSeedTables().cities {
		c.seed[k] = v
	}
	return c
}

// NewEmptyCache returns a cache without seed entries.
func NewEmptyCache(store CoordinateStore) *Cache {
	return &Cache{
		entries: make(map[Key]Coordinates),
		seed:    make(map[Key]Coordinates),
		store:   store,
		log:     logrus.WithField("component", "geocache"),
	}
}

// Seed adds a lowest-priority entry.
func (c *Cache) Seed(city, state string, coords Coordinates) {
	c.mu.Lock()
	c.seed[NewKey(city, state)] = coords
	c.mu.Unlock()
}

// Lookup returns the cached coordinates for a city. Store failures skip
// straight to the seed table.
func (c *Cache) Lookup(ctx context.Context, city, state string) (Coordinates, bool) {
	key := NewKey(city, state)
	if key.City == "" || key.State == "" {
		return Coordinates{}, false
	}

	c.mu.RLock()
	coords, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return coords, true
	}

	if c.store != nil {
		coords, ok, err := c.store.LookupCoordinates(ctx, key)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{"state": key.State, "city": key.City}).Warn("coordinate store lookup failed")
		} else if ok {
			c.promote(key, coords)
			return coords, true
		}
	}

	c.mu.RLock()
	coords, ok = c.seed[key]
	c.mu.RUnlock()
	if !ok {
		return Coordinates{}, false
	}
	c.promote(key, coords)
	return coords, true
}

func (c *Cache) promote(key Key, coords Coordinates) {
	c.mu.Lock()
	c.entries[key] = coords
	c.mu.Unlock()
}

// Remember records resolved coordinates. The in-memory write always succeeds;
// the store write is best effort.
func (c *Cache) Remember(ctx context.Context, city, state string, coords Coordinates, origin string) {
	key := NewKey(city, state)
	if key.City == "" || key.State == "" {
		return
	}

	c.mu.Lock()
	c.entries[key] = coords
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	entry := Entry{
		State:       key.State,
		City:        city,
		Coordinates: coords,
		Origin:      origin,
		ResolvedAt:  time.Now().UTC(),
	}
	if err := c.store.SaveCoordinates(ctx, entry); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"state": key.State, "city": key.City}).Warn("coordinate write-back failed")
	}
}

// Forget removes an entry from memory and the store so the next resolve
// consults the external geocoder again. A seed city with nothing stored
// cannot be forgotten and yields ErrSeedEntry.
func (c *Cache) Forget(ctx context.Context, city, state string) (bool, error) {
	key := NewKey(city, state)

	c.mu.Lock()
	_, inMemory := c.entries[key]
	delete(c.entries, key)
	_, seeded := c.seed[key]
	c.mu.Unlock()

	deleted := false
	if c.store != nil {
		var err error
		if deleted, err = c.store.DeleteCoordinates(ctx, key); err != nil {
			return false, err
		}
	}
	if seeded && !deleted {
		return false, ErrSeedEntry
	}
	return inMemory || deleted, nil
}

// FallbackCenter is the last resort for every resolution.
func (c *Cache) FallbackCenter(state string) Coordinates {
	return FallbackCenter(state)
}

// Len reports the number of distinct cities the cache can answer without
// the store.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.entries)
	for k := range c.seed {
		if _, ok := c.entries[k]; !ok {
			n++
		}
	}
	return n
}
