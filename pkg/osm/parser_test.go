package osm

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logistics/pkg/logistics"
)

// Equator fixture, 0.01 degree grid (about 1.112 km per step):
//
//	          Charlie(4)
//	             |
//	6 -----------+
//	|            |
//	Alpha(1) --- 2 --- Bravo(3) ~~~ 5 "Footpath end" (footway)
//	 \                /
//	  ------ 7 -------
//
// Way 13 (via 7) is a longer Alpha-Bravo road listed before the direct one.
const fixtureXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="0" lon="0"><tag k="name" v="Alpha"/></node>
  <node id="2" lat="0" lon="0.01"/>
  <node id="3" lat="0" lon="0.02"><tag k="name" v="Bravo"/></node>
  <node id="4" lat="0.01" lon="0.02"><tag k="name" v="Charlie"/></node>
  <node id="5" lat="0" lon="0.03"><tag k="name" v="Footpath end"/></node>
  <node id="6" lat="0.01" lon="0"/>
  <node id="7" lat="-0.01" lon="0.01"/>
  <node id="8" lat="0.02" lon="0.02"><tag k="name" v="Private Yard"/></node>
  <way id="13">
    <nd ref="1"/><nd ref="7"/><nd ref="3"/>
    <tag k="highway" v="service"/>
  </way>
  <way id="10">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/><nd ref="4"/>
    <tag k="highway" v="residential"/>
    <tag k="oneway" v="yes"/>
  </way>
  <way id="11">
    <nd ref="3"/><nd ref="5"/>
    <tag k="highway" v="footway"/>
  </way>
  <way id="12">
    <nd ref="1"/><nd ref="6"/><nd ref="4"/>
    <tag k="highway" v="primary"/>
  </way>
  <way id="14">
    <nd ref="4"/><nd ref="8"/>
    <tag k="highway" v="service"/>
    <tag k="access" v="private"/>
  </way>
</osm>`

func parseFixture(t *testing.T, opt ParseOptions) *ParseResult {
	t.Helper()
	opt.Format = FormatXML
	opt.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := Parse(context.Background(), strings.NewReader(fixtureXML), opt)
	require.NoError(t, err)
	return res
}

func TestParseConnectsNamedPlaces(t *testing.T) {
	res := parseFixture(t, ParseOptions{})

	require.Len(t, res.Connections, 3)

	// The longer Alpha-Bravo road came first; the shorter one replaced its distance.
	ab := res.Connections[0]
	assert.True(t, ab.Connects(place("Alpha"), place("Bravo")))
	assert.InDelta(t, 2.224, ab.Distance, 0.002)

	bc := res.Connections[1]
	assert.True(t, bc.Connects(place("Bravo"), place("Charlie")))
	assert.InDelta(t, 1.112, bc.Distance, 0.002)

	ac := res.Connections[2]
	assert.True(t, ac.Connects(place("Alpha"), place("Charlie")))
	assert.InDelta(t, 3.336, ac.Distance, 0.003)

	assert.Len(t, res.Locations, 3)
	assert.Equal(t, logistics.LatLng{Lat: 0.01, Lng: 0.02}, res.Locations["Charlie"])
	assert.NotContains(t, res.Locations, "Footpath end")
	assert.NotContains(t, res.Locations, "Private Yard")
}

func TestParseBoundingBox(t *testing.T) {
	res := parseFixture(t, ParseOptions{
		BBox: &orb.Bound{Min: orb.Point{-0.001, -0.001}, Max: orb.Point{0.021, 0.001}},
	})

	require.Len(t, res.Connections, 1)
	assert.True(t, res.Connections[0].Connects(place("Alpha"), place("Bravo")))
	assert.NotContains(t, res.Locations, "Charlie")
}

func TestParseResultRoutesMap(t *testing.T) {
	res := parseFixture(t, ParseOptions{})

	m, err := res.RoutesMap("Equator Depot")
	require.NoError(t, err)
	assert.Equal(t, "equator-depot", m.Slug())
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.HasConnection(logistics.Place{Name: "Charlie"}, logistics.Place{Name: "Alpha"}))

	loc, ok := m.Location("Alpha")
	require.True(t, ok)
	assert.Equal(t, logistics.LatLng{}, loc)
}

func TestParseCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, strings.NewReader(fixtureXML), ParseOptions{
		Format: FormatXML,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("xml")
	require.NoError(t, err)
	assert.Equal(t, FormatXML, f)

	f, err = ParseFormat("pbf")
	require.NoError(t, err)
	assert.Equal(t, FormatPBF, f)

	_, err = ParseFormat("geojson")
	assert.Error(t, err)
}

func TestIsTruckAccessible(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{
			name: "residential road",
			tags: osm.Tags{{Key: "highway", Value: "residential"}},
			want: true,
		},
		{
			name: "motorway",
			tags: osm.Tags{{Key: "highway", Value: "motorway"}},
			want: true,
		},
		{
			name: "footway",
			tags: osm.Tags{{Key: "highway", Value: "footway"}},
			want: false,
		},
		{
			name: "private access",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "access", Value: "private"},
			},
			want: false,
		},
		{
			name: "motor_vehicle=no",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "motor_vehicle", Value: "no"},
			},
			want: false,
		},
		{
			name: "hgv=no",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "hgv", Value: "no"},
			},
			want: false,
		},
		{
			name: "area=yes (pedestrian plaza)",
			tags: osm.Tags{
				{Key: "highway", Value: "service"},
				{Key: "area", Value: "yes"},
			},
			want: false,
		},
		{
			name: "no highway tag",
			tags: osm.Tags{{Key: "name", Value: "Some Street"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTruckAccessible(tt.tags); got != tt.want {
				t.Errorf("isTruckAccessible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func place(name string) logistics.Place { return logistics.Place{Name: name} }
