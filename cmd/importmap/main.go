// Command importmap loads routes maps into a map store, either from an
// OpenStreetMap extract or from an HCL map file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"logistics/pkg/graph"
	"logistics/pkg/logging"
	"logistics/pkg/logistics"
	"logistics/pkg/mapfile"
	osmparser "logistics/pkg/osm"
	"logistics/pkg/service"
	"logistics/pkg/store"
)

type config struct {
	storeDir         string
	osmPath          string
	format           string
	hclPath          string
	name             string
	bbox             *orb.Bound
	largestComponent bool
	replace          bool
}

var (
	singaporeBBox = orb.Bound{Min: orb.Point{103.6, 1.15}, Max: orb.Point{104.1, 1.48}}
	klBBox        = orb.Bound{Min: orb.Point{101.2, 2.75}, Max: orb.Point{102.0, 3.5}}
)

func main() {
	var cfg config
	flag.StringVar(&cfg.storeDir, "store", "maps", "Map store: a directory, or a SQLite file ending in .db")
	flag.StringVar(&cfg.osmPath, "osm", "", "Path to an .osm.pbf or .osm file")
	flag.StringVar(&cfg.format, "format", "", "OSM format: pbf or xml (default: from file extension)")
	flag.StringVar(&cfg.hclPath, "hcl", "", "Path to an HCL map file")
	flag.StringVar(&cfg.name, "name", "", "Map name for an OSM import (default: file name)")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 1.15,103.6,1.48,104.1)")
	singapore := flag.Bool("singapore", false, "Shortcut for --bbox 1.15,103.6,1.48,104.1 (Singapore bounding box)")
	kl := flag.Bool("kl", false, "Shortcut for --bbox 2.75,101.2,3.5,102.0 (Selangor + Kuala Lumpur bounding box)")
	flag.BoolVar(&cfg.largestComponent, "largest-component", false, "Keep only the largest connected group of places")
	flag.BoolVar(&cfg.replace, "replace", false, "Replace maps that already exist in the store")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.NewTextLogger(os.Stderr, level)

	if (cfg.osmPath == "") == (cfg.hclPath == "") {
		fmt.Fprintln(os.Stderr, "Usage: importmap --store <dir> (--osm <file.osm.pbf> [--name <map>] [--singapore | --kl | --bbox minLat,minLng,maxLat,maxLng] | --hcl <maps.hcl>)")
		os.Exit(2)
	}

	switch {
	case *kl:
		cfg.bbox = &klBBox
	case *singapore:
		cfg.bbox = &singaporeBBox
	case *bbox != "":
		b, err := parseBBox(*bbox)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg.bbox = &b
	}

	ctx := logging.WithLogger(context.Background(), logger)
	if err := run(ctx, cfg); err != nil {
		logging.LogError(logger, "import failed", err)
		os.Exit(1)
	}
}

func parseBBox(s string) (orb.Bound, error) {
	var minLat, minLng, maxLat, maxLng float64
	if _, err := fmt.Sscanf(s, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
		return orb.Bound{}, fmt.Errorf("invalid bbox format (expected minLat,minLng,maxLat,maxLng): %w", err)
	}
	if minLat > maxLat || minLng > maxLng {
		return orb.Bound{}, fmt.Errorf("invalid bbox %q: min exceeds max", s)
	}
	return orb.Bound{Min: orb.Point{minLng, minLat}, Max: orb.Point{maxLng, maxLat}}, nil
}

func run(ctx context.Context, cfg config) error {
	logger := logging.FromContext(ctx, nil)
	start := time.Now()

	st, err := store.Open(ctx, cfg.storeDir)
	if err != nil {
		return err
	}
	if c, ok := st.(io.Closer); ok {
		defer logging.SafeClose(c, logging.FromContext(ctx, nil), "close_store")
	}
	svc := service.New(st, service.WithLogger(logger))

	var maps []*logistics.RoutesMap
	if cfg.hclPath != "" {
		maps, err = mapfile.ParseFile(cfg.hclPath)
	} else {
		var m *logistics.RoutesMap
		m, err = importOSM(ctx, cfg)
		maps = []*logistics.RoutesMap{m}
	}
	if err != nil {
		return err
	}

	for _, m := range maps {
		if cfg.largestComponent {
			before := m.Len()
			if m, err = graph.KeepLargestComponent(m); err != nil {
				return err
			}
			logger.Info("kept largest component",
				slog.String("slug", m.Slug()),
				slog.Int("connections", m.Len()),
				slog.Int("dropped", before-m.Len()))
		}
		if err := save(ctx, svc, m, cfg.replace); err != nil {
			return fmt.Errorf("save %q: %w", m.Name(), err)
		}
	}

	logger.Info("import complete",
		slog.Int("maps", len(maps)),
		slog.String("store", cfg.storeDir),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return nil
}

func importOSM(ctx context.Context, cfg config) (*logistics.RoutesMap, error) {
	format, err := osmFormat(cfg)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(cfg.osmPath)
	if err != nil {
		return nil, fmt.Errorf("open OSM file: %w", err)
	}
	defer logging.SafeClose(f, logging.FromContext(ctx, nil), "close_osm_file")

	res, err := osmparser.Parse(ctx, f, osmparser.ParseOptions{
		Format: format,
		BBox:   cfg.bbox,
		Logger: logging.FromContext(ctx, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("parse OSM data: %w", err)
	}

	name := cfg.name
	if name == "" {
		name = baseName(cfg.osmPath)
	}
	return res.RoutesMap(name)
}

func osmFormat(cfg config) (osmparser.Format, error) {
	if cfg.format != "" {
		return osmparser.ParseFormat(cfg.format)
	}
	if strings.HasSuffix(cfg.osmPath, ".pbf") {
		return osmparser.FormatPBF, nil
	}
	return osmparser.FormatXML, nil
}

// baseName strips directories and every extension: "data/sg.osm.pbf" -> "sg".
func baseName(path string) string {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

func save(ctx context.Context, svc *service.Service, m *logistics.RoutesMap, replace bool) error {
	_, err := svc.CreateRoutesMap(ctx, m)
	if !replace || !errors.Is(err, service.ErrDuplicateSlug) {
		return err
	}
	if err := svc.RemoveRoutesMap(ctx, m.Slug()); err != nil && !errors.Is(err, service.ErrMapNotFound) {
		return err
	}
	_, err = svc.CreateRoutesMap(ctx, m)
	return err
}
