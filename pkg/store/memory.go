package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"logistics/pkg/logistics"
)

// MemoryStore keeps maps in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	maps  map[string]*logistics.RoutesMap
	order []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{maps: make(map[string]*logistics.RoutesMap)}
}

func (s *MemoryStore) Load(ctx context.Context, slug string) (*logistics.RoutesMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.maps[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	return m.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, m *logistics.RoutesMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkSlug(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.maps[m.Slug()]; !ok {
		s.order = append(s.order, m.Slug())
	}
	s.maps[m.Slug()] = m.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.maps[slug]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	delete(s.maps, slug)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == slug })
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*logistics.RoutesMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*logistics.RoutesMap, 0, len(s.order))
	for _, slug := range s.order {
		out = append(out, s.maps[slug].Clone())
	}
	return out, nil
}
