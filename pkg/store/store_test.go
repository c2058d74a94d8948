package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logistics/pkg/logistics"
)

func newMap(t *testing.T, name string, routes ...logistics.Route) *logistics.RoutesMap {
	t.Helper()
	m, err := logistics.NewRoutesMap(name)
	require.NoError(t, err)
	for _, r := range routes {
		_, err := m.AddRoute(r)
		require.NoError(t, err)
	}
	return m
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "maps.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestStoreRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := newMap(t, "São Paulo",
			logistics.NewRoute("A", "B", 10),
			logistics.NewRoute("B", "D", 15.5),
		)
		require.NoError(t, m.SetLocation("A", logistics.LatLng{Lat: -23.55, Lng: -46.63}))

		require.NoError(t, s.Save(ctx, m))

		loaded, err := s.Load(ctx, "sao-paulo")
		require.NoError(t, err)
		assert.Equal(t, "São Paulo", loaded.Name())
		assert.Equal(t, m.Connections(), loaded.Connections())
		assert.Equal(t, m.Routes(), loaded.Routes())
		assert.Equal(t, m.Locations(), loaded.Locations())
	})
}

func TestStoreReturnsCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := newMap(t, "copies", logistics.NewRoute("A", "B", 1))
		require.NoError(t, s.Save(ctx, m))

		// Mutating the saved instance or a loaded one leaves the store alone.
		_, err := m.AddRoute(logistics.NewRoute("B", "C", 1))
		require.NoError(t, err)
		loaded, err := s.Load(ctx, "copies")
		require.NoError(t, err)
		_, err = loaded.RemoveRoute(logistics.NewRoute("A", "B", 1))
		require.NoError(t, err)

		again, err := s.Load(ctx, "copies")
		require.NoError(t, err)
		assert.Equal(t, 1, again.Len())
		assert.True(t, again.ContainsRoute(logistics.NewRoute("A", "B", 1)))
	})
}

func TestStoreNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)

		_, err = s.Load(ctx, "../escape")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreDeleteAndListOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, name := range []string{"Zulu", "Alpha", "Mike"} {
			require.NoError(t, s.Save(ctx, newMap(t, name)))
		}
		// Re-saving keeps the original position.
		require.NoError(t, s.Save(ctx, newMap(t, "Zulu", logistics.NewRoute("A", "B", 1))))

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"zulu", "alpha", "mike"}, slugs(list))

		require.NoError(t, s.Delete(ctx, "alpha"))
		_, err = s.Load(ctx, "alpha")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Save(ctx, newMap(t, "Bravo")))
		list, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"zulu", "mike", "bravo"}, slugs(list))
	})
}

func TestStoreRejectsInvalidSlug(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		assert.ErrorIs(t, s.Save(ctx, &logistics.RoutesMap{}), logistics.ErrInvalidName)
		assert.ErrorIs(t, s.Save(ctx, nil), logistics.ErrInvalidName)

		// A rejected save leaves the store listable.
		require.NoError(t, s.Save(ctx, newMap(t, "valid")))
		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"valid"}, slugs(list))
	})
}

func TestStoreCanceledContext(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, s.Save(ctx, newMap(t, "late")), context.Canceled)
		_, err := s.Load(ctx, "late")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, newMap(t, "first", logistics.NewRoute("A", "B", 2))))
	require.NoError(t, s.Save(ctx, newMap(t, "second")))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, reopened.Save(ctx, newMap(t, "third")))

	list, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, slugs(list))
	assert.True(t, list[0].ContainsRoute(logistics.NewRoute("B", "A", 2)))
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, newMap(t, "fragile", logistics.NewRoute("A", "B", 2))))

	path := filepath.Join(dir, "fragile"+fileExt)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	t.Run("flipped payload byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-8] ^= 0xFF
		require.NoError(t, os.WriteFile(path, bad, 0o644))

		_, err := s.Load(ctx, "fragile")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		copy(bad, "NOTAMAP!")
		require.NoError(t, os.WriteFile(path, bad, 0o644))

		_, err := s.Load(ctx, "fragile")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, data[:10], 0o644))

		_, err := s.Load(ctx, "fragile")
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func slugs(list []*logistics.RoutesMap) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.Slug()
	}
	return out
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, newMap(t, "first", logistics.NewRoute("A", "B", 2))))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	m, err := reopened.Load(ctx, "first")
	require.NoError(t, err)
	assert.True(t, m.ContainsRoute(logistics.NewRoute("B", "A", 2)))
}

func TestSQLiteStoreInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, newMap(t, "scratch")))
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"scratch"}, slugs(list))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, filepath.Join(dir, "maps"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, filepath.Join(dir, "maps.db"))
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, s)
	assert.NoError(t, s.(*SQLiteStore).Close())
}
