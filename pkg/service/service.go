// Package service is the entry point for clients of the routes-map engine.
//
// A Service keeps map slugs unique, serializes mutations per slug, persists
// every change through a store.Store and answers best-route queries on
// snapshots loaded from that store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"logistics/pkg/geo"
	"logistics/pkg/logging"
	"logistics/pkg/logistics"
	"logistics/pkg/routing"
	"logistics/pkg/store"
)

var (
	// ErrDuplicateSlug is returned when creating a map whose slug is taken.
	ErrDuplicateSlug = errors.New("service: routes map slug already exists")

	// ErrMapNotFound is returned when operating on a slug with no stored map.
	ErrMapNotFound = errors.New("service: routes map not found")

	// ErrNoLocations is returned by NearestPlace when no place of the map
	// has coordinates.
	ErrNoLocations = errors.New("service: routes map has no located places")
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used when the context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithFinder replaces the default Dijkstra route finder.
func WithFinder(f routing.Finder) Option {
	return func(s *Service) { s.finder = f }
}

// Service manages routes maps held in a store.
type Service struct {
	store  store.Store
	finder routing.Finder
	logger *slog.Logger
	locks  *slugLocks
}

// New returns a Service backed by st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		finder: routing.DijkstraFinder{},
		logger: slog.Default(),
		locks:  newSlugLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) log(ctx context.Context, slug string) *slog.Logger {
	return logging.FromContext(ctx, s.logger).With(
		slog.String("component", "routes_map_service"),
		slog.String("slug", slug))
}

// CreateRoutesMap stores a copy of m, routes included, and returns the
// stored snapshot.
func (s *Service) CreateRoutesMap(ctx context.Context, m *logistics.RoutesMap) (*logistics.RoutesMap, error) {
	if m == nil {
		return nil, errors.New("service: nil routes map")
	}
	slug := m.Slug()
	if slug == "" {
		return nil, fmt.Errorf("%w: empty slug", logistics.ErrInvalidName)
	}
	logger := s.log(ctx, slug)

	unlock := s.locks.lock(slug)
	defer unlock()

	_, err := s.store.Load(ctx, slug)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %q", ErrDuplicateSlug, slug)
	case !errors.Is(err, store.ErrNotFound):
		logging.LogError(logger, "failed to check routes map slug", err)
		return nil, err
	}

	stored := m.Clone()
	if err := s.store.Save(ctx, stored); err != nil {
		logging.LogError(logger, "failed to save routes map", err)
		return nil, err
	}
	logging.LogOperation(logger, "routes_map_created",
		slog.String("name", stored.Name()),
		slog.Int("connections", stored.Len()))
	return stored.Clone(), nil
}

// ListRoutesMaps returns every stored map in creation order.
func (s *Service) ListRoutesMaps(ctx context.Context) ([]*logistics.RoutesMap, error) {
	return s.store.List(ctx)
}

// GetRoutesMapBySlug returns the stored map, or nil without error when no
// map has that slug.
func (s *Service) GetRoutesMapBySlug(ctx context.Context, slug string) (*logistics.RoutesMap, error) {
	m, err := s.store.Load(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// AddRouteToMap adds route and its opposite to the map and returns both.
func (s *Service) AddRouteToMap(ctx context.Context, slug string, route logistics.Route) ([2]logistics.Route, error) {
	var pair [2]logistics.Route
	err := s.mutate(ctx, slug, "route_added", func(m *logistics.RoutesMap) (err error) {
		pair, err = m.AddRoute(route)
		return err
	}, slog.String("route", route.String()))
	return pair, err
}

// RemoveRouteFromMap removes route and its opposite from the map and
// returns both.
func (s *Service) RemoveRouteFromMap(ctx context.Context, slug string, route logistics.Route) ([2]logistics.Route, error) {
	var pair [2]logistics.Route
	err := s.mutate(ctx, slug, "route_removed", func(m *logistics.RoutesMap) (err error) {
		pair, err = m.RemoveRoute(route)
		return err
	}, slog.String("route", route.String()))
	return pair, err
}

// SetPlaceLocation attaches coordinates to a place of the map.
func (s *Service) SetPlaceLocation(ctx context.Context, slug, place string, loc logistics.LatLng) error {
	if !geo.ValidLatLng(loc) {
		return fmt.Errorf("service: invalid coordinates %v,%v", loc.Lat, loc.Lng)
	}
	return s.mutate(ctx, slug, "place_located", func(m *logistics.RoutesMap) error {
		return m.SetLocation(place, loc)
	}, slog.String("place", place))
}

// RemoveRoutesMap deletes the map. Removing a missing map fails with
// ErrMapNotFound every time.
func (s *Service) RemoveRoutesMap(ctx context.Context, slug string) error {
	logger := s.log(ctx, slug)

	unlock := s.locks.lock(slug)
	defer unlock()

	if err := s.store.Delete(ctx, slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrMapNotFound, slug)
		}
		logging.LogError(logger, "failed to delete routes map", err)
		return err
	}
	logging.LogOperation(logger, "routes_map_removed")
	return nil
}

// GetBestRoute finds the cheapest path between two places of the map.
// Errors from the finder are returned unchanged.
func (s *Service) GetBestRoute(ctx context.Context, slug, origin, destination string, consumptionRate, fuelPrice float64) (*routing.ChosenRoute, error) {
	m, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	chosen, err := s.finder.FindBest(m, origin, destination, consumptionRate, fuelPrice)
	if err != nil {
		return nil, err
	}
	s.log(ctx, slug).Debug("best route found",
		slog.String("origin", origin),
		slog.String("destination", destination),
		slog.Int("hops", len(chosen.Routes)),
		slog.Float64("cost", chosen.Cost),
		slog.Duration("duration", time.Since(start)))
	return chosen, nil
}

// NearestPlace returns the located place closest to loc and its distance
// in meters.
func (s *Service) NearestPlace(ctx context.Context, slug string, loc logistics.LatLng) (logistics.Place, float64, error) {
	m, err := s.load(ctx, slug)
	if err != nil {
		return logistics.Place{}, 0, err
	}
	ix := geo.NewPlaceIndex(m.Locations())
	if ix.Len() == 0 {
		return logistics.Place{}, 0, fmt.Errorf("%w: %q", ErrNoLocations, slug)
	}
	name, meters, ok := ix.Nearest(loc)
	if !ok {
		return logistics.Place{}, 0, fmt.Errorf("service: invalid coordinates %v,%v", loc.Lat, loc.Lng)
	}
	return logistics.Place{Name: name}, meters, nil
}

func (s *Service) load(ctx context.Context, slug string) (*logistics.RoutesMap, error) {
	m, err := s.store.Load(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrMapNotFound, slug)
	}
	return m, err
}

// mutate runs fn on the stored map under the slug lock and saves the result.
// Nothing is saved when fn fails.
func (s *Service) mutate(ctx context.Context, slug, operation string, fn func(*logistics.RoutesMap) error, attrs ...slog.Attr) error {
	logger := s.log(ctx, slug)

	unlock := s.locks.lock(slug)
	defer unlock()

	m, err := s.load(ctx, slug)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	if err := s.store.Save(ctx, m); err != nil {
		logging.LogError(logger, "failed to save routes map", err, slog.String("operation", operation))
		return err
	}
	logging.LogOperation(logger, operation, attrs...)
	return nil
}
