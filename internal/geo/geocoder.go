package geo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultMaxDistanceKm bounds how far a geocoded point may sit from its
// state's centroid before it is treated as a wrong match.
const DefaultMaxDistanceKm = 2500

type Stats struct {
	Hits          int `json:"hits"`
	Misses        int `json:"misses"`
	ExternalCalls int `json:"externalCalls"`
	Fallbacks     int `json:"fallbacks"`
}

// Geocoder resolves (city, state) pairs. Only cache misses reach the
// provider, and consecutive provider calls are spaced by the limiter.
// A Geocoder is meant to serve one run; resolve calls are sequential.
// Concurrent runs stay within the provider's rate only when they share a
// limiter (NewSharedGeocoder).
type Geocoder struct {
	cache         *Cache
	provider      Provider
	limiter       *rate.Limiter
	MaxDistanceKm float64

	mu    sync.Mutex
	stats Stats
	log   *logrus.Entry
}

// NewLimiter returns a limiter allowing one provider call per interval.
// Geocoders that must respect the same upstream quota share one limiter.
func NewLimiter(interval time.Duration) *rate.Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return rate.NewLimiter(limit, 1)
}

// NewGeocoder builds a geocoder over cache with its own limiter. provider
// may be nil, in which case every miss degrades to the fallback center.
func NewGeocoder(cache *Cache, provider Provider, interval time.Duration) *Geocoder {
	return NewSharedGeocoder(cache, provider, NewLimiter(interval))
}

// NewSharedGeocoder builds a geocoder whose provider calls are paced by limiter.
func NewSharedGeocoder(cache *Cache, provider Provider, limiter *rate.Limiter) *Geocoder {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &Geocoder{
		cache:         cache,
		provider:      provider,
		limiter:       limiter,
		MaxDistanceKm: DefaultMaxDistanceKm,
		log:           logrus.WithField("component", "geocoder"),
	}
}

// Resolve never fails; any problem yields FallbackCenter(state).
func (g *Geocoder) Resolve(ctx context.Context, city, state string) Coordinates {
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	if city == "" || state == "" {
		return g.fallback(state)
	}

	if coords, ok := g.cache.Lookup(ctx, city, state); ok {
		g.count(func(s *Stats) { s.Hits++ })
		return coords
	}
	g.count(func(s *Stats) { s.Misses++ })

	if g.provider == nil {
		return g.fallback(state)
	}

	coords, err := g.lookup(ctx, city, state)
	if err != nil {
		g.log.WithError(err).WithFields(logrus.Fields{"city": city, "state": state}).Debug("geocoding failed, using fallback center")
		return g.fallback(state)
	}

	g.cache.Remember(ctx, city, state, coords, OriginGeocoder)
	return coords
}

func (g *Geocoder) lookup(ctx context.Context, city, state string) (Coordinates, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Coordinates{}, fmt.Errorf("waiting for geocoder slot: %w", err)
	}
	g.count(func(s *Stats) { s.ExternalCalls++ })

	coords, err := g.provider.Search(ctx, fmt.Sprintf("%s, %s, USA", city, state))
	if err != nil {
		return Coordinates{}, err
	}
	if !coords.Valid() {
		return Coordinates{}, fmt.Errorf("invalid coordinates %s", coords)
	}
	if center, ok := StateCenter(state); ok && g.MaxDistanceKm > 0 {
		if d := coords.DistanceKm(center); d > g.MaxDistanceKm {
			return Coordinates{}, fmt.Errorf("result %s is %.0f km from %s", coords, d, NormalizeState(state))
		}
	}
	return coords, nil
}

func (g *Geocoder) fallback(state string) Coordinates {
	g.count(func(s *Stats) { s.Fallbacks++ })
	return g.cache.FallbackCenter(state)
}

func (g *Geocoder) count(fn func(*Stats)) {
	g.mu.Lock()
	fn(&g.stats)
	g.mu.Unlock()
}

func (g *Geocoder) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
