package geo

import (
	"embed"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/golang/geo/s2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const earthRadiusKm = 6371.0088

//go:embed data/*.yaml
var dataFS embed.FS

type Coordinates struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// NationalCenter is the geographic center of the contiguous United States.
var NationalCenter = Coordinates{Lat: 39.8283, Lng: -98.5795}

// Valid reports whether c is a finite point on the globe.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return s2.LatLngFromDegrees(c.Lat, c.Lng).IsValid()
}

// DistanceKm returns the great-circle distance between two points.
func (c Coordinates) DistanceKm(other Coordinates) float64 {
	a := s2.LatLngFromDegrees(c.Lat, c.Lng)
	b := s2.LatLngFromDegrees(other.Lat, other.Lng)
	return a.Distance(b).Radians() * earthRadiusKm
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lng)
}

// Key identifies a cache entry after normalization.
type Key struct {
	State string
	City  string
}

func NewKey(city, state string) Key {
	return Key{State: NormalizeState(state), City: NormalizeCity(city)}
}

// NormalizeState trims and upper-cases a region code.
func NormalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeCity lowercases, strips accents and collapses whitespace so that
// "  San  Antonio" and "san antonio" share a key.
func NormalizeCity(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		strings.ToLower(s),
	)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

type seedTables struct {
	centroids map[string]Coordinates
	cities    map[Key]Coordinates
}

var loadSeedTables = sync.OnceValue(func() seedTables {
	var centroids map[string]Coordinates
	mustDecode("data/centroids.yaml", &centroids)

	var byState map[string]map[string]Coordinates
	mustDecode("data/cities.yaml", &byState)

	t := seedTables{
		centroids: make(map[string]Coordinates, len(centroids)),
		cities:    make(map[Key]Coordinates),
	}
	for state, c := range centroids {
		t.centroids[NormalizeState(state)] = c
	}
	for state, cities := range byState {
		for city, c := range cities {
			t.cities[NewKey(city, state)] = c
		}
	}
	return t
})

func mustDecode(name string, v any) {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("geo: reading %s: %v", name, err))
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		panic(fmt.Sprintf("geo: decoding %s: %v", name, err))
	}
}

// StateCenter returns the fixed centroid for a state code.
func StateCenter(state string) (Coordinates, bool) {
	code := NormalizeState(state)
	if code == "" || code == "US" {
		return Coordinates{}, false
	}
	c, ok := loadSeedTables().centroids[code]
	return c, ok
}

// FallbackCenter returns the state centroid, or NationalCenter when the state
// is absent or unknown.
func FallbackCenter(state string) Coordinates {
	if c, ok := StateCenter(state); ok {
		return c
	}
	return NationalCenter
}
