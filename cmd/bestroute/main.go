// Command bestroute queries a map store: it lists stored maps, prints the
// cheapest route between two places, or names the place nearest to a point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"logistics/pkg/logging"
	"logistics/pkg/logistics"
	"logistics/pkg/service"
	"logistics/pkg/store"
)

type config struct {
	storeDir    string
	slug        string
	from        string
	to          string
	consumption float64
	price       float64
	near        string
	list        bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.storeDir, "store", "maps", "Map store: a directory, or a SQLite file ending in .db")
	flag.StringVar(&cfg.slug, "map", "", "Slug of the map to query")
	flag.StringVar(&cfg.from, "from", "", "Origin place")
	flag.StringVar(&cfg.to, "to", "", "Destination place")
	flag.Float64Var(&cfg.consumption, "consumption", 10, "Distance covered per unit of fuel")
	flag.Float64Var(&cfg.price, "price", 0, "Price of one unit of fuel")
	flag.StringVar(&cfg.near, "near", "", "Find the place nearest to lat,lng")
	flag.BoolVar(&cfg.list, "list", false, "List stored maps")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.NewTextLogger(os.Stderr, level)

	if !cfg.list && (cfg.slug == "" || (cfg.near == "" && (cfg.from == "" || cfg.to == ""))) {
		fmt.Fprintln(os.Stderr, "Usage: bestroute --store <dir> (--list | --map <slug> (--from <place> --to <place> [--consumption 10] [--price 2.5] | --near lat,lng))")
		os.Exit(2)
	}

	ctx := logging.WithLogger(context.Background(), logger)
	if err := run(ctx, cfg, os.Stdout); err != nil {
		logging.LogError(logger, "query failed", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, w io.Writer) error {
	st, err := store.Open(ctx, cfg.storeDir)
	if err != nil {
		return err
	}
	if c, ok := st.(io.Closer); ok {
		defer logging.SafeClose(c, logging.FromContext(ctx, nil), "close_store")
	}
	svc := service.New(st, service.WithLogger(logging.FromContext(ctx, nil)))

	switch {
	case cfg.list:
		maps, err := svc.ListRoutesMaps(ctx)
		if err != nil {
			return err
		}
		for _, m := range maps {
			fmt.Fprintf(w, "%s\t%s\t%d connections\n", m.Slug(), m.Name(), m.Len())
		}
		return nil

	case cfg.near != "":
		loc, err := parseLatLng(cfg.near)
		if err != nil {
			return err
		}
		place, meters, err := svc.NearestPlace(ctx, cfg.slug, loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s (%.0f m)\n", place, meters)
		return nil
	}

	chosen, err := svc.GetBestRoute(ctx, cfg.slug, cfg.from, cfg.to, cfg.consumption, cfg.price)
	if err != nil {
		return err
	}
	path := make([]string, 0, len(chosen.Routes)+1)
	path = append(path, cfg.from)
	for _, r := range chosen.Routes {
		path = append(path, r.Destination.Name)
	}
	fmt.Fprintf(w, "route: %s\n", strings.Join(path, " -> "))
	fmt.Fprintf(w, "distance: %g\n", chosen.Distance)
	fmt.Fprintf(w, "cost: %.2f\n", chosen.Cost)
	return nil
}

func parseLatLng(s string) (logistics.LatLng, error) {
	var ll logistics.LatLng
	if _, err := fmt.Sscanf(s, "%f,%f", &ll.Lat, &ll.Lng); err != nil {
		return logistics.LatLng{}, fmt.Errorf("invalid coordinates %q (expected lat,lng): %w", s, err)
	}
	return ll, nil
}
