package domain

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed cities.yaml
var citiesYAML []byte

// CityID is the canonical name of a tracked city, e.g. "São Paulo". It is
// the value stored in an article's location column and the key of the
// heatmap snapshot.
type CityID = string

// City is one entry of the tracked-city registry. Coordinates are for map
// placement; a zero lat/lon pair means "unknown, geocode if enabled".
type City struct {
	Name    string  `yaml:"name" json:"name"`
	Country string  `yaml:"country" json:"country"`
	Lat     float64 `yaml:"lat" json:"lat"`
	Lon     float64 `yaml:"lon" json:"lon"`
}

// Registry is the fixed, ordered set of tracked cities. It is immutable
// after construction and safe for concurrent reads.
type Registry struct {
	cities    []City
	normNames []string       // normalized names, same order as cities
	byName    map[string]int // normalized name -> index into cities
}

// NewRegistry builds a registry from an explicit city list, preserving order.
func NewRegistry(cities []City) (*Registry, error) {
	r := &Registry{
		cities:    cities,
		normNames: make([]string, len(cities)),
		byName:    make(map[string]int, len(cities)),
	}
	for i, c := range cities {
		key := NormalizeCityName(c.Name)
		if key == "" {
			return nil, fmt.Errorf("registry entry %d has an empty name", i)
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate registry entry %q", c.Name)
		}
		r.normNames[i] = key
		r.byName[key] = i
	}
	return r, nil
}

// LoadRegistry parses the embedded cities.yaml into a Registry.
func LoadRegistry() (*Registry, error) {
	var doc struct {
		Cities []City `yaml:"cities"`
	}
	if err := yaml.Unmarshal(citiesYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse cities.yaml: %w", err)
	}
	if len(doc.Cities) == 0 {
		return nil, fmt.Errorf("cities.yaml contains no cities")
	}
	return NewRegistry(doc.Cities)
}

// Cities returns the registry entries in population-rank order. The returned
// slice is shared; callers must not mutate it.
func (r *Registry) Cities() []City {
	return r.cities
}

// Len returns the number of tracked cities.
func (r *Registry) Len() int {
	return len(r.cities)
}

// Lookup resolves a free-form city name to its canonical CityID. Matching is
// case-insensitive, diacritic-insensitive, and treats underscores as spaces.
func (r *Registry) Lookup(name string) (CityID, bool) {
	i, ok := r.byName[NormalizeCityName(name)]
	if !ok {
		return "", false
	}
	return r.cities[i].Name, true
}

// CityByID returns the full registry entry for a canonical CityID.
func (r *Registry) CityByID(id CityID) (City, bool) {
	i, ok := r.byName[NormalizeCityName(id)]
	if !ok {
		return City{}, false
	}
	return r.cities[i], true
}

// foldDiacritics decomposes to NFD, drops combining marks, and recomposes,
// so "São" folds to "Sao".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeCityName canonicalizes a city name for matching: lower case, no
// diacritics, underscores as spaces, collapsed whitespace.
func NormalizeCityName(name string) string {
	folded, _, err := transform.String(foldDiacritics, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "_", " ")
	return strings.Join(strings.Fields(folded), " ")
}
