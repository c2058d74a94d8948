package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"logistics/pkg/logistics"
)

//go:embed schema.sql
var ddl string

// SQLiteStore keeps maps in a SQLite database, one row per slug. Rows hold
// the same BSON record as FileStore; the autoincrement id gives creation
// order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway store.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", stmt, err)
		}
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, slug string) (*logistics.RoutesMap, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM routes_maps WHERE slug = ?`, slug).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", slug, err)
	}
	return decodeRow(payload)
}

func (s *SQLiteStore) Save(ctx context.Context, m *logistics.RoutesMap) error {
	if err := checkSlug(m); err != nil {
		return err
	}
	payload, err := bson.Marshal(newRecord(0, m))
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Slug(), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO routes_maps (slug, name, payload) VALUES (?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET name = excluded.name, payload = excluded.payload`,
		m.Slug(), m.Name(), payload)
	if err != nil {
		return fmt.Errorf("save %q: %w", m.Slug(), err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM routes_maps WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("delete %q: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %q: %w", slug, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*logistics.RoutesMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM routes_maps ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var out []*logistics.RoutesMap
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		m, err := decodeRow(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return out, nil
}

func decodeRow(payload []byte) (*logistics.RoutesMap, error) {
	var rec mapRecord
	if err := bson.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrCorrupt, err)
	}
	return rec.routesMap()
}
