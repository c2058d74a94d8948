// Package osm imports routes between named places from OpenStreetMap data.
//
// Roads are read from ways with a drivable highway tag, and places are the
// nodes on those ways carrying a name tag. Walking a way from node to node,
// the distance between two consecutive named nodes becomes one connection.
package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"logistics/pkg/geo"
	"logistics/pkg/logistics"
)

// Format selects the OSM encoding of the input.
type Format int

const (
	FormatPBF Format = iota
	FormatXML
)

// ParseFormat maps "pbf" or "xml" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "pbf", "osm.pbf":
		return FormatPBF, nil
	case "xml", "osm":
		return FormatXML, nil
	}
	return 0, fmt.Errorf("unknown OSM format %q", s)
}

func (f Format) String() string {
	if f == FormatXML {
		return "xml"
	}
	return "pbf"
}

// ParseResult holds the connections and place coordinates found in the input.
type ParseResult struct {
	Connections []logistics.Route // one per place pair, in discovery order
	Locations   map[string]logistics.LatLng
}

// RoutesMap builds a map called name from the result.
func (r *ParseResult) RoutesMap(name string) (*logistics.RoutesMap, error) {
	m, err := logistics.NewRoutesMap(name)
	if err != nil {
		return nil, err
	}
	for _, c := range r.Connections {
		if _, err := m.AddRoute(c); err != nil {
			return nil, fmt.Errorf("add %s: %w", c, err)
		}
	}
	for place, loc := range r.Locations {
		if !m.HasPlace(place) {
			continue
		}
		if err := m.SetLocation(place, loc); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// truckHighways lists highway tag values a delivery truck may use.
var truckHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isTruckAccessible returns true if the way is drivable by a goods vehicle.
func isTruckAccessible(tags osm.Tags) bool {
	if !truckHighways[tags.Find("highway")] {
		return false
	}

	// Pedestrian plazas.
	if tags.Find("area") == "yes" {
		return false
	}

	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	for _, key := range []string{"motor_vehicle", "hgv", "goods"} {
		if tags.Find(key) == "no" {
			return false
		}
	}
	return true
}

// ParseOptions configures the importer.
type ParseOptions struct {
	Format Format
	BBox   *orb.Bound   // if set, named nodes outside it are ignored
	Logger *slog.Logger // defaults to slog.Default()
}

type nodeInfo struct {
	point orb.Point
	name  string
}

type pairKey struct{ a, b string }

func keyFor(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Parse reads OSM data and returns the connections between named places.
// The reader is consumed twice (ways, then nodes), so it must implement
// io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opt ParseOptions) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Pass 1: ways.
	var ways [][]osm.NodeID
	referenced := make(map[osm.NodeID]struct{})

	sc := newScanner(ctx, rs, opt.Format, true)
	for sc.Scan() {
		w, ok := sc.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 || !isTruckAccessible(w.Tags) {
			continue
		}
		ids := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = wn.ID
			referenced[wn.ID] = struct{}{}
		}
		ways = append(ways, ids)
	}
	if err := closeScanner(sc); err != nil {
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	logger.Info("osm pass 1 complete", slog.Int("ways", len(ways)), slog.Int("referenced_nodes", len(referenced)))

	// Pass 2: coordinates and names of referenced nodes.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodes := make(map[osm.NodeID]nodeInfo, len(referenced))
	sc = newScanner(ctx, rs, opt.Format, false)
	for sc.Scan() {
		n, ok := sc.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		info := nodeInfo{point: n.Point(), name: n.Tags.Find("name")}
		if info.name != "" && opt.BBox != nil && !opt.BBox.Contains(info.point) {
			info.name = ""
		}
		nodes[n.ID] = info
	}
	if err := closeScanner(sc); err != nil {
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	logger.Info("osm pass 2 complete", slog.Int("nodes", len(nodes)))

	res := &ParseResult{Locations: make(map[string]logistics.LatLng)}
	index := make(map[pairKey]int)
	var missing int

	for _, ids := range ways {
		var (
			prev    string
			meters  float64
			last    orb.Point
			hasLast bool
		)
		for _, id := range ids {
			info, ok := nodes[id]
			if !ok {
				// A gap in the way breaks the chain.
				missing++
				prev, meters, hasLast = "", 0, false
				continue
			}
			if hasLast {
				meters += geo.Haversine(last.Lat(), last.Lon(), info.point.Lat(), info.point.Lon())
			}
			last, hasLast = info.point, true

			if info.name == "" {
				continue
			}
			if _, seen := res.Locations[info.name]; !seen {
				res.Locations[info.name] = logistics.LatLng{Lat: info.point.Lat(), Lng: info.point.Lon()}
			}
			if prev != "" && prev != info.name {
				res.connect(index, prev, info.name, meters)
			}
			prev, meters = info.name, 0
		}
	}

	// Drop locations of places that never got a connection.
	placed := make(map[string]bool, len(res.Locations))
	for _, c := range res.Connections {
		placed[c.Origin.Name] = true
		placed[c.Destination.Name] = true
	}
	for name := range res.Locations {
		if !placed[name] {
			delete(res.Locations, name)
		}
	}

	if missing > 0 {
		logger.Warn("skipped way nodes with missing coordinates", slog.Int("count", missing))
	}
	logger.Info("osm import complete",
		slog.Int("connections", len(res.Connections)),
		slog.Int("places", len(res.Locations)))

	return res, nil
}

// connect records a connection in kilometres, keeping the shortest one seen
// for each pair of places.
func (r *ParseResult) connect(index map[pairKey]int, from, to string, meters float64) {
	km := math.Round(meters) / 1000
	if km <= 0 {
		return
	}
	k := keyFor(from, to)
	if i, ok := index[k]; ok {
		if km < r.Connections[i].Distance {
			r.Connections[i].Distance = km
		}
		return
	}
	index[k] = len(r.Connections)
	r.Connections = append(r.Connections, logistics.NewRoute(from, to, km))
}

func newScanner(ctx context.Context, r io.Reader, f Format, waysPass bool) osm.Scanner {
	if f == FormatXML {
		return osmxml.New(ctx, r)
	}
	sc := osmpbf.New(ctx, r, 1)
	sc.SkipRelations = true
	if waysPass {
		sc.SkipNodes = true
	} else {
		sc.SkipWays = true
	}
	return sc
}

func closeScanner(sc osm.Scanner) error {
	err := sc.Err()
	sc.Close()
	return err
}
