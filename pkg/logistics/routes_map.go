// Package logistics holds the routes-map data model: places, directed routes
// kept in opposite pairs, and the RoutesMap aggregate that enforces one
// undirected connection per pair of places.
package logistics

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrInvalidName is returned when a map name yields an empty slug.
var ErrInvalidName = errors.New("logistics: map name has no sluggable characters")

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// RoutesMap is a named graph of places joined by bidirectional routes.
//
// Routes are stored in insertion order as adjacent pairs [r, r.Opposite()].
// A RoutesMap is not safe for concurrent mutation; the service serializes
// writers per slug and hands out clones to readers.
type RoutesMap struct {
	name      string
	slug      string
	routes    []Route
	locations map[string]LatLng
}

// NewRoutesMap creates an empty map. The slug is computed here and never
// changes afterwards.
func NewRoutesMap(name string) (*RoutesMap, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return &RoutesMap{name: name, slug: slug}, nil
}

// Name returns the display name.
func (m *RoutesMap) Name() string { return m.name }

// Slug returns the identity key derived from the name.
func (m *RoutesMap) Slug() string { return m.slug }

// Equal reports whether both maps share a slug.
func (m *RoutesMap) Equal(other *RoutesMap) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.slug == other.slug
}

// Len returns the number of undirected connections.
func (m *RoutesMap) Len() int { return len(m.routes) / 2 }

// Routes returns every directed route, both directions included.
func (m *RoutesMap) Routes() []Route { return slices.Clone(m.routes) }

// Connections returns the first route of each pair in insertion order.
// Re-adding them to an empty map reproduces this one.
func (m *RoutesMap) Connections() []Route {
	out := make([]Route, 0, m.Len())
	for i := 0; i < len(m.routes); i += 2 {
		out = append(out, m.routes[i])
	}
	return out
}

// Places returns the places touched by at least one route, in order of
// first appearance.
func (m *RoutesMap) Places() []Place {
	seen := make(map[Place]struct{})
	var places []Place
	for _, r := range m.routes {
		for _, p := range [2]Place{r.Origin, r.Destination} {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			places = append(places, p)
		}
	}
	return places
}

// HasPlace reports whether a route touches the named place.
func (m *RoutesMap) HasPlace(name string) bool {
	for _, r := range m.routes {
		if r.Origin.Name == name {
			return true
		}
	}
	return false
}

// HasConnection reports whether p and q are connected in either direction.
func (m *RoutesMap) HasConnection(p, q Place) bool {
	return slices.ContainsFunc(m.routes, func(r Route) bool { return r.Connects(p, q) })
}

// ContainsRoute is an exact, direction-sensitive membership test.
func (m *RoutesMap) ContainsRoute(r Route) bool {
	return slices.Contains(m.routes, r)
}

// AddRoute stores r together with its opposite and returns both, in that
// order. Any existing connection between the two places is a conflict,
// whatever its direction or distance.
func (m *RoutesMap) AddRoute(r Route) ([2]Route, error) {
	if err := r.Validate(); err != nil {
		return [2]Route{}, err
	}
	if m.HasConnection(r.Origin, r.Destination) {
		return [2]Route{}, fmt.Errorf("%w: %s and %s", ErrDuplicateConnection, r.Origin, r.Destination)
	}
	pair := [2]Route{r, r.Opposite()}
	m.routes = append(m.routes, pair[0], pair[1])
	return pair, nil
}

// RemoveRoute drops r and its opposite. r must match a stored route exactly;
// either direction of the pair may be given.
func (m *RoutesMap) RemoveRoute(r Route) ([2]Route, error) {
	i := slices.Index(m.routes, r)
	if i < 0 {
		return [2]Route{}, fmt.Errorf("%w: %s", ErrRouteNotFound, r)
	}
	// Pairs occupy [2k, 2k+1].
	start := i - i%2
	m.routes = slices.Delete(m.routes, start, start+2)
	m.pruneLocations(r.Origin.Name, r.Destination.Name)
	return [2]Route{r, r.Opposite()}, nil
}

// SetLocation attaches coordinates to a place of the map.
func (m *RoutesMap) SetLocation(name string, loc LatLng) error {
	if !m.HasPlace(name) {
		return fmt.Errorf("%w: %q", ErrPlaceNotFound, name)
	}
	if m.locations == nil {
		m.locations = make(map[string]LatLng)
	}
	m.locations[name] = loc
	return nil
}

// Location returns the coordinates of a place, if known.
func (m *RoutesMap) Location(name string) (LatLng, bool) {
	loc, ok := m.locations[name]
	return loc, ok
}

// Locations returns a copy of all known place coordinates.
func (m *RoutesMap) Locations() map[string]LatLng {
	if len(m.locations) == 0 {
		return map[string]LatLng{}
	}
	return maps.Clone(m.locations)
}

// Clone returns a deep copy.
func (m *RoutesMap) Clone() *RoutesMap {
	c := &RoutesMap{
		name:   m.name,
		slug:   m.slug,
		routes: slices.Clone(m.routes),
	}
	if len(m.locations) > 0 {
		c.locations = maps.Clone(m.locations)
	}
	return c
}

func (m *RoutesMap) pruneLocations(names ...string) {
	for _, name := range names {
		if _, ok := m.locations[name]; ok && !m.HasPlace(name) {
			delete(m.locations, name)
		}
	}
}
