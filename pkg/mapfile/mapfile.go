// Package mapfile reads routes maps declared in HCL files:
//
//	map "Arquillian IntegrationTest" {
//	  route {
//	    from     = "A"
//	    to       = "B"
//	    distance = 10
//	  }
//	  place "A" {
//	    lat = 1.30
//	    lon = 103.80
//	  }
//	}
//
// Routes are added in file order. Place blocks may appear anywhere in the
// map block but must name a place that some route touches.
package mapfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"logistics/pkg/geo"
	"logistics/pkg/logistics"
)

type hclFile struct {
	Maps []*hclMap `hcl:"map,block"`
}

type hclMap struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclRoute struct {
	From     string  `hcl:"from"`
	To       string  `hcl:"to"`
	Distance float64 `hcl:"distance"`
}

type hclPlace struct {
	Lat float64 `hcl:"lat"`
	Lon float64 `hcl:"lon"`
}

var mapBodySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "route"},
		{Type: "place", LabelNames: []string{"name"}},
	},
}

// ParseFile reads the maps declared in the file at path.
func ParseFile(path string) ([]*logistics.RoutesMap, error) {
	f, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse map file %s: %w", path, diags)
	}
	return decode(f, path)
}

// Parse reads the maps declared in src. filename is used in error messages.
func Parse(src []byte, filename string) ([]*logistics.RoutesMap, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse map file %s: %w", filename, diags)
	}
	return decode(f, filename)
}

func decode(f *hcl.File, filename string) ([]*logistics.RoutesMap, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode map file %s: %w", filename, diags)
	}

	maps := make([]*logistics.RoutesMap, 0, len(parsed.Maps))
	for _, pm := range parsed.Maps {
		m, err := pm.routesMap()
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, nil
}

func (pm *hclMap) routesMap() (*logistics.RoutesMap, error) {
	m, err := logistics.NewRoutesMap(pm.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pm.Body.MissingItemRange(), err)
	}

	content, diags := pm.Body.Content(mapBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode map %q: %w", pm.Name, diags)
	}

	var places []*hcl.Block
	for _, block := range content.Blocks {
		if block.Type == "place" {
			places = append(places, block)
			continue
		}
		var r hclRoute
		if diags := gohcl.DecodeBody(block.Body, nil, &r); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode route in map %q: %w", pm.Name, diags)
		}
		if _, err := m.AddRoute(logistics.NewRoute(r.From, r.To, r.Distance)); err != nil {
			return nil, fmt.Errorf("%s: %w", block.DefRange, err)
		}
	}

	// Places last, so they may precede the routes that touch them.
	for _, block := range places {
		var p hclPlace
		if diags := gohcl.DecodeBody(block.Body, nil, &p); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode place in map %q: %w", pm.Name, diags)
		}
		loc := logistics.LatLng{Lat: p.Lat, Lng: p.Lon}
		if !geo.ValidLatLng(loc) {
			return nil, fmt.Errorf("%s: place %q has invalid coordinates %v,%v", block.DefRange, block.Labels[0], p.Lat, p.Lon)
		}
		if err := m.SetLocation(block.Labels[0], loc); err != nil {
			return nil, fmt.Errorf("%s: %w", block.DefRange, err)
		}
	}
	return m, nil
}
