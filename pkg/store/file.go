package store

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"logistics/pkg/logistics"
)

const (
	magicBytes    = "ROUTEMAP"
	version       = uint32(1)
	fileExt       = ".rmap"
	maxPayloadLen = 64 << 20
)

// fileHeader is the binary header preceding the BSON payload.
type fileHeader struct {
	Magic      [8]byte
	Version    uint32
	PayloadLen uint32
}

type mapRecord struct {
	Seq         int64            `bson:"seq"`
	Name        string           `bson:"name"`
	Slug        string           `bson:"slug"`
	Connections []routeRecord    `bson:"connections"`
	Locations   []locationRecord `bson:"locations,omitempty"`
}

type routeRecord struct {
	Origin      string  `bson:"origin"`
	Destination string  `bson:"destination"`
	Distance    float64 `bson:"distance"`
}

type locationRecord struct {
	Place string  `bson:"place"`
	Lat   float64 `bson:"lat"`
	Lng   float64 `bson:"lng"`
}

// FileStore keeps one file per map under a directory. Each file is written
// to a temp path and renamed into place, so readers never observe a partial
// write.
type FileStore struct {
	dir string

	mu      sync.Mutex // serializes writers
	nextSeq int64      // 0 until the directory has been scanned
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(slug string) string {
	return filepath.Join(s.dir, slug+fileExt)
}

// validSlug rejects anything that is not in canonical slug form, which also
// keeps lookups inside the store directory.
func validSlug(slug string) bool {
	return slug != "" && logistics.Slugify(slug) == slug
}

func (s *FileStore) Load(ctx context.Context, slug string) (*logistics.RoutesMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validSlug(slug) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	rec, err := readRecord(s.path(slug))
	if err != nil {
		return nil, err
	}
	m, err := rec.routesMap()
	if err != nil {
		return nil, err
	}
	if m.Slug() != slug {
		return nil, fmt.Errorf("%w: file %q holds slug %q", ErrCorrupt, slug, m.Slug())
	}
	return m, nil
}

func (s *FileStore) Save(ctx context.Context, m *logistics.RoutesMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkSlug(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.seqFor(m.Slug())
	if err != nil {
		return err
	}
	return writeRecord(s.path(m.Slug()), newRecord(seq, m))
}

func (s *FileStore) Delete(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validSlug(slug) {
		return fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(slug)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, slug)
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]*logistics.RoutesMap, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*logistics.RoutesMap, 0, len(records))
	for _, rec := range records {
		m, err := rec.routesMap()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// records reads every map file, ordered by creation sequence.
func (s *FileStore) records(ctx context.Context) ([]*mapRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var records []*mapRecord
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		rec, err := readRecord(filepath.Join(s.dir, e.Name()))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // deleted while listing
			}
			return nil, err
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *mapRecord) int {
		return cmp.Or(cmp.Compare(a.Seq, b.Seq), cmp.Compare(a.Slug, b.Slug))
	})
	return records, nil
}

// seqFor keeps the sequence of an existing map and hands out the next one
// for a new map. Callers hold s.mu.
func (s *FileStore) seqFor(slug string) (int64, error) {
	rec, err := readRecord(s.path(slug))
	switch {
	case err == nil:
		return rec.Seq, nil
	case !errors.Is(err, ErrNotFound):
		return 0, err
	}

	if s.nextSeq == 0 {
		records, err := s.records(context.Background())
		if err != nil {
			return 0, err
		}
		s.nextSeq = 1
		if n := len(records); n > 0 {
			s.nextSeq = records[n-1].Seq + 1
		}
	}
	seq := s.nextSeq
	s.nextSeq++
	return seq, nil
}

func newRecord(seq int64, m *logistics.RoutesMap) *mapRecord {
	rec := &mapRecord{Seq: seq, Name: m.Name(), Slug: m.Slug()}
	for _, r := range m.Connections() {
		rec.Connections = append(rec.Connections, routeRecord{
			Origin:      r.Origin.Name,
			Destination: r.Destination.Name,
			Distance:    r.Distance,
		})
	}
	for name, loc := range m.Locations() {
		rec.Locations = append(rec.Locations, locationRecord{Place: name, Lat: loc.Lat, Lng: loc.Lng})
	}
	slices.SortFunc(rec.Locations, func(a, b locationRecord) int { return cmp.Compare(a.Place, b.Place) })
	return rec
}

// routesMap rebuilds the aggregate through its own constructors so every
// invariant is checked again on load.
func (rec *mapRecord) routesMap() (*logistics.RoutesMap, error) {
	m, err := logistics.NewRoutesMap(rec.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.Slug() != rec.Slug {
		return nil, fmt.Errorf("%w: slug %q does not match name %q", ErrCorrupt, rec.Slug, rec.Name)
	}
	for _, r := range rec.Connections {
		if _, err := m.AddRoute(logistics.NewRoute(r.Origin, r.Destination, r.Distance)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	for _, loc := range rec.Locations {
		if err := m.SetLocation(loc.Place, logistics.LatLng{Lat: loc.Lat, Lng: loc.Lng}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return m, nil
}

// writeRecord serializes rec to path via a temp file and atomic rename.
func writeRecord(path string, rec *mapRecord) error {
	payload, err := bson.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Slug, err)
	}
	if len(payload) > maxPayloadLen {
		return fmt.Errorf("encode %s: payload of %d bytes exceeds limit %d", rec.Slug, len(payload), maxPayloadLen)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	hdr := fileHeader{Version: version, PayloadLen: uint32(len(payload))}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	// Write CRC32 trailer.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// readRecord deserializes one map file. A missing file is ErrNotFound; any
// framing or checksum problem is ErrCorrupt.
func readRecord(path string) (*mapRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	// Read and validate header.
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("%w: invalid magic bytes %q", ErrCorrupt, hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, hdr.Version)
	}
	if hdr.PayloadLen > maxPayloadLen {
		return nil, fmt.Errorf("%w: payload length %d exceeds limit %d", ErrCorrupt, hdr.PayloadLen, maxPayloadLen)
	}

	payload := make([]byte, hdr.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", ErrCorrupt, err)
	}

	// Read and validate CRC32.
	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("%w: read CRC32: %v", ErrCorrupt, err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("%w: CRC32 mismatch: stored=%08x computed=%08x", ErrCorrupt, storedCRC, expectedCRC)
	}

	var rec mapRecord
	if err := bson.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrCorrupt, err)
	}
	return &rec, nil
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
