// Package store persists routes maps by slug.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"logistics/pkg/logistics"
)

var (
	// ErrNotFound is returned when no map is stored under a slug.
	ErrNotFound = errors.New("store: routes map not found")

	// ErrCorrupt is returned when a stored map fails validation on load.
	ErrCorrupt = errors.New("store: corrupt routes map record")
)

// Store loads and saves routes maps by slug. Save must be atomic with
// respect to concurrent saves of the same slug. Implementations hand out
// copies: mutating a loaded map never changes the stored one.
type Store interface {
	// Load returns the map stored under slug, or ErrNotFound.
	Load(ctx context.Context, slug string) (*logistics.RoutesMap, error)

	// Save inserts or replaces the map under its slug.
	Save(ctx context.Context, m *logistics.RoutesMap) error

	// Delete removes the map stored under slug, or returns ErrNotFound.
	Delete(ctx context.Context, slug string) error

	// List returns every stored map in creation order.
	List(ctx context.Context) ([]*logistics.RoutesMap, error)
}

// Open picks a store for location: a SQLite database for paths ending in
// .db or .sqlite, a FileStore directory otherwise.
func Open(ctx context.Context, location string) (Store, error) {
	switch filepath.Ext(location) {
	case ".db", ".sqlite":
		return NewSQLiteStore(ctx, location)
	}
	return NewFileStore(location)
}

// checkSlug rejects maps whose slug is not in canonical form, such as a
// zero-value RoutesMap.
func checkSlug(m *logistics.RoutesMap) error {
	if m == nil {
		return fmt.Errorf("%w: nil routes map", logistics.ErrInvalidName)
	}
	if !validSlug(m.Slug()) {
		return fmt.Errorf("%w: slug %q", logistics.ErrInvalidName, m.Slug())
	}
	return nil
}
