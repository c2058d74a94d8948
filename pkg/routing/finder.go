// Package routing answers best-route queries over a routes map: the shortest
// path between two places and the fuel cost of driving it.
package routing

import (
	"errors"
	"fmt"
	"math"

	"logistics/pkg/graph"
	"logistics/pkg/logistics"
)

var (
	// ErrNoRoute is returned when no route exists between the two places.
	ErrNoRoute = errors.New("routing: no route found")

	// ErrInvalidCostParameters is returned for a non-positive consumption
	// rate or a negative fuel price.
	ErrInvalidCostParameters = errors.New("routing: invalid cost parameters")
)

// ChosenRoute is the result of a best-route query.
type ChosenRoute struct {
	Routes   []logistics.Route // edges in traversal order
	Distance float64           // sum of Routes distances
	Cost     float64
}

// Finder is the interface for best-route queries.
type Finder interface {
	FindBest(m *logistics.RoutesMap, origin, destination string, consumptionRate, fuelPrice float64) (*ChosenRoute, error)
}

// DijkstraFinder implements Finder with a single-source Dijkstra search per
// query. It keeps no state between calls.
type DijkstraFinder struct{}

// FindBest calls DijkstraFinder.FindBest.
func FindBest(m *logistics.RoutesMap, origin, destination string, consumptionRate, fuelPrice float64) (*ChosenRoute, error) {
	return DijkstraFinder{}.FindBest(m, origin, destination, consumptionRate, fuelPrice)
}

// FindBest returns the minimum-distance path from origin to destination and
// its cost, (distance / consumptionRate) * fuelPrice.
//
// consumptionRate is the distance covered per unit of fuel and fuelPrice the
// price of one unit. Among paths of equal distance the first one discovered
// wins, where discovery follows route insertion order.
func (DijkstraFinder) FindBest(m *logistics.RoutesMap, origin, destination string, consumptionRate, fuelPrice float64) (*ChosenRoute, error) {
	if !finite(consumptionRate) || consumptionRate <= 0 {
		return nil, fmt.Errorf("%w: consumption rate %v must be positive", ErrInvalidCostParameters, consumptionRate)
	}
	if !finite(fuelPrice) || fuelPrice < 0 {
		return nil, fmt.Errorf("%w: fuel price %v must not be negative", ErrInvalidCostParameters, fuelPrice)
	}

	g := graph.Build(m)
	src, ok := g.NodeIndex(origin)
	if !ok {
		return nil, placeNotFound(origin)
	}
	dst, ok := g.NodeIndex(destination)
	if !ok {
		return nil, placeNotFound(destination)
	}

	if src == dst {
		return &ChosenRoute{Routes: []logistics.Route{}}, nil
	}

	edges, _, ok := shortestPath(g, src, dst)
	if !ok {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoRoute, origin, destination)
	}

	routes := m.Routes()
	chosen := &ChosenRoute{Routes: make([]logistics.Route, len(edges))}
	for i, e := range edges {
		r := routes[g.RouteIdx[e]]
		chosen.Routes[i] = r
		chosen.Distance += r.Distance
	}
	chosen.Cost = chosen.Distance / consumptionRate * fuelPrice

	return chosen, nil
}

// placeNotFound reports a name without incident routes. Such a place has no
// route to anywhere, so the error matches ErrNoRoute as well.
func placeNotFound(name string) error {
	return fmt.Errorf("%w: %q: %w", logistics.ErrPlaceNotFound, name, ErrNoRoute)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
