// Command genmock writes a deterministic synthetic hotspot CSV in the layout
// of the INPE 10-minute detection files. Fire fronts are tight groups of
// detections around random centers; noise detections are scattered across the
// bounding box. It clusters the generated points with the real clustering and
// classification code and prints the expected intensity breakdown.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/hotspots/focos_10min_20240820_1430.csv \
//	  -fronts 4 -front-size 12 -noise 20 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/cluster"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// Legal Amazon bounding box, where most INPE detections fall.
const (
	minLat = -18.0
	maxLat = 5.0
	minLon = -74.0
	maxLon = -44.0

	// frontSpread keeps every detection of a front within a few kilometres.
	frontSpread = 0.02
)

var satellites = []string{"AQUA_M-T", "TERRA_M-T", "NPP-375", "NOAA-20", "GOES-16"}

type options struct {
	out        string
	fronts     int
	frontSize  int
	noise      int
	seed       uint64
	observedAt string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts options
	flag.StringVar(&opts.out, "out", "", "output CSV path")
	flag.IntVar(&opts.fronts, "fronts", 4, "number of fire fronts")
	flag.IntVar(&opts.frontSize, "front-size", 12, "maximum detections per front (sizes vary from 2 up to this)")
	flag.IntVar(&opts.noise, "noise", 20, "number of isolated detections")
	flag.Uint64Var(&opts.seed, "seed", 42, "random seed")
	flag.StringVar(&opts.observedAt, "time", "2024-08-20 14:30:00", "data_hora_gmt value for every row")
	flag.Parse()

	if opts.out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if opts.frontSize < 2 {
		return fmt.Errorf("-front-size must be at least 2")
	}
	if _, err := time.Parse(domain.TimestampLayout, opts.observedAt); err != nil {
		return fmt.Errorf("invalid -time: %w", err)
	}

	rows := generate(opts)
	if err := writeCSV(opts.out, rows); err != nil {
		return fmt.Errorf("writing %s: %w", opts.out, err)
	}
	log.Printf("wrote %d detections to %s", len(rows), opts.out)

	printStats(rows)
	return nil
}

type detection struct {
	point     domain.GeoPoint
	satellite string
	observed  string
}

func generate(opts options) []detection {
	r := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	var rows []detection //nolint:prealloc // front sizes are random
	for range opts.fronts {
		center := domain.GeoPoint{
			Lat: minLat + r.Float64()*(maxLat-minLat),
			Lon: minLon + r.Float64()*(maxLon-minLon),
		}
		size := 2 + r.IntN(opts.frontSize-1)
		for range size {
			rows = append(rows, detection{
				point: domain.GeoPoint{
					Lat: round(center.Lat + (r.Float64()*2-1)*frontSpread),
					Lon: round(center.Lon + (r.Float64()*2-1)*frontSpread),
				},
				satellite: satellites[r.IntN(len(satellites))],
				observed:  opts.observedAt,
			})
		}
	}
	for range opts.noise {
		rows = append(rows, detection{
			point: domain.GeoPoint{
				Lat: round(minLat + r.Float64()*(maxLat-minLat)),
				Lon: round(minLon + r.Float64()*(maxLon-minLon)),
			},
			satellite: satellites[r.IntN(len(satellites))],
			observed:  opts.observedAt,
		})
	}

	r.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	return rows
}

// round keeps five decimals, the precision INPE publishes.
func round(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 5, 64), 64)
	return f
}

func writeCSV(path string, rows []detection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"lat", "lon", "satelite", "data_hora_gmt"}); err != nil {
		return err
	}
	for _, d := range rows {
		if err := w.Write([]string{
			strconv.FormatFloat(d.point.Lat, 'f', 5, 64),
			strconv.FormatFloat(d.point.Lon, 'f', 5, 64),
			d.satellite,
			d.observed,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func printStats(rows []detection) {
	points := make([]domain.GeoPoint, len(rows))
	for i, d := range rows {
		points[i] = d.point
	}
	clusters := cluster.DBSCAN(points, cluster.DefaultParams())

	for _, thresholds := range []domain.Thresholds{
		domain.DefaultThresholds(),
		{Medium: domain.LegacyMediumThreshold, High: domain.DefaultHighThreshold},
	} {
		counts := map[domain.IntensityLabel]int{}
		for _, c := range thresholds.ClassifyPoints(clusters, len(points)) {
			counts[c.Intensity]++
		}
		fmt.Printf("medium>=%d high>=%d: low=%d medium=%d high=%d\n",
			thresholds.Medium, thresholds.High,
			counts[domain.IntensityLow], counts[domain.IntensityMedium], counts[domain.IntensityHigh])
	}

	var sizes []int
	noise := 0
	for _, c := range clusters {
		if c.IsNoise() {
			noise = c.Size()
			continue
		}
		sizes = append(sizes, c.Size())
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	fmt.Printf("clusters: %d %v, noise: %d\n", len(sizes), sizes, noise)
}
