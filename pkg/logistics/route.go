package logistics

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidRoute is returned for routes with empty endpoints, equal
	// endpoints, or a non-positive distance.
	ErrInvalidRoute = errors.New("logistics: invalid route")

	// ErrDuplicateConnection is returned when the two places of a route are
	// already connected in the map, in either direction.
	ErrDuplicateConnection = errors.New("logistics: places already connected")

	// ErrRouteNotFound is returned when removing a route the map does not hold.
	ErrRouteNotFound = errors.New("logistics: route not found")

	// ErrPlaceNotFound is returned when a place name has no incident route.
	ErrPlaceNotFound = errors.New("logistics: place not found")
)

// Place is a named node of a routes map. Names are case-sensitive.
type Place struct {
	Name string
}

// String returns the place name.
func (p Place) String() string { return p.Name }

// Route is a directed, distance-weighted edge between two places.
// Two routes are equal (==) iff origin, destination and distance all match.
type Route struct {
	Origin      Place
	Destination Place
	Distance    float64
}

// NewRoute is shorthand for a Route between two place names.
func NewRoute(origin, destination string, distance float64) Route {
	return Route{Origin: Place{origin}, Destination: Place{destination}, Distance: distance}
}

// Opposite returns the reverse edge with the same distance.
func (r Route) Opposite() Route {
	return Route{Origin: r.Destination, Destination: r.Origin, Distance: r.Distance}
}

// Connects reports whether r joins p and q, regardless of direction.
func (r Route) Connects(p, q Place) bool {
	return (r.Origin == p && r.Destination == q) || (r.Origin == q && r.Destination == p)
}

// Validate checks the route can be stored in a map.
func (r Route) Validate() error {
	switch {
	case r.Origin.Name == "" || r.Destination.Name == "":
		return fmt.Errorf("%w: empty place name", ErrInvalidRoute)
	case r.Origin == r.Destination:
		return fmt.Errorf("%w: %s connects to itself", ErrInvalidRoute, r.Origin)
	case math.IsNaN(r.Distance) || math.IsInf(r.Distance, 0) || r.Distance <= 0:
		return fmt.Errorf("%w: distance %v must be a positive number", ErrInvalidRoute, r.Distance)
	}
	return nil
}

func (r Route) String() string {
	return fmt.Sprintf("%s→%s (%g)", r.Origin, r.Destination, r.Distance)
}
