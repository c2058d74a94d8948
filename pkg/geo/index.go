package geo

import (
	"math"

	"github.com/tidwall/rtree"

	"logistics/pkg/logistics"
)

// initialSearchDeg is the first half-width of the nearest-place window.
// 0.01° ≈ 1.1 km at the equator.
const initialSearchDeg = 0.01

// PlaceIndex answers nearest-place queries over named coordinates using an
// R-tree of points keyed by [lng, lat].
type PlaceIndex struct {
	tr   rtree.RTreeG[string]
	locs map[string]logistics.LatLng
}

// NewPlaceIndex indexes every location. Invalid coordinates are skipped.
func NewPlaceIndex(locations map[string]logistics.LatLng) *PlaceIndex {
	ix := &PlaceIndex{locs: make(map[string]logistics.LatLng, len(locations))}
	for name, ll := range locations {
		if !ValidLatLng(ll) {
			continue
		}
		pt := [2]float64{ll.Lng, ll.Lat}
		ix.tr.Insert(pt, pt, name)
		ix.locs[name] = ll
	}
	return ix
}

// Len returns the number of indexed places.
func (ix *PlaceIndex) Len() int { return ix.tr.Len() }

// Nearest returns the indexed place closest to q and its distance in meters.
//
// The search window starts small and quadruples until it holds a candidate.
// The best candidate's distance then bounds a second window that must contain
// every closer place. Equal distances go to the smaller name.
func (ix *PlaceIndex) Nearest(q logistics.LatLng) (name string, meters float64, ok bool) {
	if ix.Len() == 0 || !ValidLatLng(q) {
		return "", 0, false
	}

	radius := initialSearchDeg
	for ; radius < 360; radius *= 4 {
		if ix.any(q, radius, lngRadius(q.Lat, radius)) {
			break
		}
	}
	name, meters = ix.best(q, radius, lngRadius(q.Lat, radius))

	deg := meters/earthRadiusMeters*180/math.Pi*1.0001 + 1e-9
	name, meters = ix.best(q, deg, lngRadius(q.Lat, deg))
	return name, meters, name != ""
}

func (ix *PlaceIndex) best(q logistics.LatLng, latR, lngR float64) (name string, meters float64) {
	meters = math.Inf(1)
	ix.search(q, latR, lngR, func(candidate string) bool {
		d := Distance(q, ix.locs[candidate])
		if d < meters || (d == meters && candidate < name) {
			name, meters = candidate, d
		}
		return true
	})
	return name, meters
}

func (ix *PlaceIndex) any(q logistics.LatLng, latR, lngR float64) bool {
	found := false
	ix.search(q, latR, lngR, func(string) bool {
		found = true
		return false
	})
	return found
}

// search visits every place inside the window around q. Windows crossing
// the antimeridian are split in two.
func (ix *PlaceIndex) search(q logistics.LatLng, latR, lngR float64, fn func(name string) bool) {
	minLat, maxLat := q.Lat-latR, q.Lat+latR
	minLng, maxLng := q.Lng-lngR, q.Lng+lngR
	if lngR >= 180 {
		minLng, maxLng = -180, 180
	}

	stopped := false
	visit := func(lo, hi float64) {
		if stopped {
			return
		}
		ix.tr.Search([2]float64{lo, minLat}, [2]float64{hi, maxLat}, func(_, _ [2]float64, name string) bool {
			if !fn(name) {
				stopped = true
				return false
			}
			return true
		})
	}

	visit(math.Max(minLng, -180), math.Min(maxLng, 180))
	if minLng < -180 {
		visit(minLng+360, 180)
	}
	if maxLng > 180 {
		visit(-180, maxLng-360)
	}
}

// lngRadius returns the longitude half-width, in degrees, of the smallest
// window around lat that holds a circle of the given angular radius. A circle
// that reaches a pole needs every longitude.
func lngRadius(lat, radius float64) float64 {
	if math.Abs(lat)+radius >= 90 {
		return 180
	}
	rad := math.Pi / 180
	return math.Asin(math.Sin(radius*rad)/math.Cos(lat*rad)) / rad
}
