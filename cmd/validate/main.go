// Command validate checks a region records file produced by the ETL. It
// verifies the JSON schema and, when given the source CSV, that every valid
// source row produced exactly one record in input order with the intensity the
// clustering rules assign. An optional GeoJSON export is cross-checked too.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -output data/hotspots/regions.json \
//	  -source data/hotspots/focos_10min_20240820_1430.csv \
//	  -geojson data/hotspots/regions.geojson
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/csvbatch"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/cluster"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// coordTolerance absorbs float formatting differences between CSV and JSON.
const coordTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	outputPath  string
	sourcePath  string
	geojsonPath string
	params      cluster.Params
	thresholds  domain.Thresholds
}

func main() {
	var opts options
	flag.StringVar(&opts.outputPath, "output", "", "path to the region records JSON file")
	flag.StringVar(&opts.sourcePath, "source", "", "optional source CSV the output was built from")
	flag.StringVar(&opts.geojsonPath, "geojson", "", "optional GeoJSON export of the same run")
	flag.Float64Var(&opts.params.EpsKm, "eps-km", cluster.DefaultEpsKm, "clustering radius in kilometres")
	flag.IntVar(&opts.params.MinPoints, "min-points", cluster.DefaultMinPoints, "clustering density threshold")
	flag.IntVar(&opts.thresholds.Medium, "medium", domain.DefaultMediumThreshold, "medium intensity cluster size")
	flag.IntVar(&opts.thresholds.High, "high", domain.DefaultHighThreshold, "high intensity cluster size")
	flag.Parse()

	if opts.outputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(opts, os.Stdout))
}

func run(opts options, out io.Writer) int {
	fmt.Fprintln(out, "=== Hotspot Region Output Validation ===")
	fmt.Fprintln(out)

	records, err := loadRecords(opts.outputPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load output: %v\n", err)
		return 1
	}

	phases := []*phase{validateSchema(records)}

	var sourceCount int
	if opts.sourcePath != "" {
		detections, err := loadSource(opts.sourcePath)
		if err != nil {
			fmt.Fprintf(out, "FATAL: load source: %v\n", err)
			return 1
		}
		sourceCount = len(detections)
		phases = append(phases,
			validateRecordCount(records, detections),
			validateIntensity(records, detections, opts.params, opts.thresholds),
		)
	}

	if opts.geojsonPath != "" {
		fc, err := loadGeoJSON(opts.geojsonPath)
		if err != nil {
			fmt.Fprintf(out, "FATAL: load geojson: %v\n", err)
			return 1
		}
		phases = append(phases, validateGeoJSON(records, fc))
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d output", len(records))
	if opts.sourcePath != "" {
		fmt.Fprintf(out, ", %d valid source rows", sourceCount)
	}
	fmt.Fprintln(out)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// outputRecord mirrors the file schema with pointers so missing keys are detectable.
type outputRecord struct {
	ObservationTimestamp *string  `json:"observationTimestamp"`
	Municipality         *string  `json:"municipality"`
	Intensity            *string  `json:"intensity"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
}

func loadRecords(path string) ([]outputRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var records []outputRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%s: top-level value must be an array", path)
	}
	return records, nil
}

func loadSource(path string) ([]domain.DetectionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	batch, err := csvbatch.Decode(f, path)
	if err != nil {
		return nil, err
	}
	records, _ := domain.BuildRecords(batch.Rows)
	return records, nil
}

func loadGeoJSON(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}

// ── Phases ──

func validateSchema(records []outputRecord) *phase {
	p := &phase{name: "Output schema"}

	var batchTimestamp string
	for i, r := range records {
		switch {
		case r.ObservationTimestamp == nil:
			p.errorf("record %d: missing observationTimestamp", i)
		default:
			if _, err := time.Parse(domain.TimestampLayout, *r.ObservationTimestamp); err != nil {
				p.errorf("record %d: observationTimestamp %q is not %s", i, *r.ObservationTimestamp, domain.TimestampLayout)
			}
			if i == 0 {
				batchTimestamp = *r.ObservationTimestamp
			} else if *r.ObservationTimestamp != batchTimestamp {
				p.errorf("record %d: observationTimestamp %q differs from batch value %q", i, *r.ObservationTimestamp, batchTimestamp)
			}
		}

		if r.Municipality == nil || *r.Municipality == "" {
			p.errorf("record %d: missing municipality", i)
		}
		if r.Intensity == nil || !domain.IntensityLabel(*r.Intensity).Valid() {
			p.errorf("record %d: intensity must be low, medium or high", i)
		}
		if r.Latitude == nil || math.Abs(*r.Latitude) > 90 {
			p.errorf("record %d: latitude missing or out of range", i)
		}
		if r.Longitude == nil || math.Abs(*r.Longitude) > 180 {
			p.errorf("record %d: longitude missing or out of range", i)
		}
	}
	return p
}

func validateRecordCount(records []outputRecord, source []domain.DetectionRecord) *phase {
	p := &phase{name: "Record count and order"}

	if len(records) != len(source) {
		p.errorf("output has %d records, source has %d valid rows", len(records), len(source))
		return p
	}
	for i, r := range records {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		want := source[i].Point
		if math.Abs(*r.Latitude-want.Lat) > coordTolerance || math.Abs(*r.Longitude-want.Lon) > coordTolerance {
			p.errorf("record %d: (%v, %v) does not match source line %d (%v, %v)",
				i, *r.Latitude, *r.Longitude, source[i].Line, want.Lat, want.Lon)
		}
	}
	return p
}

func validateIntensity(records []outputRecord, source []domain.DetectionRecord, params cluster.Params, thresholds domain.Thresholds) *phase {
	p := &phase{name: "Intensity matches clustering"}

	if err := params.Validate(); err != nil {
		p.errorf("cluster parameters: %v", err)
		return p
	}
	if err := thresholds.Validate(); err != nil {
		p.errorf("thresholds: %v", err)
		return p
	}
	if len(records) != len(source) {
		p.errorf("skipped: record count mismatch")
		return p
	}

	classes := thresholds.ClassifyPoints(cluster.DBSCAN(domain.Points(source), params), len(source))
	for i, r := range records {
		if r.Intensity == nil {
			continue
		}
		if want := classes[i].Intensity; domain.IntensityLabel(*r.Intensity) != want {
			p.errorf("record %d (source line %d): intensity %q, want %q", i, source[i].Line, *r.Intensity, want)
		}
	}
	return p
}

func validateGeoJSON(records []outputRecord, fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "GeoJSON export consistency"}

	detections := 0
	for _, f := range fc.Features {
		kind, err := f.PropertyString("kind")
		if err != nil {
			p.errorf("feature without kind property")
			continue
		}
		if kind != "detection" {
			continue
		}
		if f.Geometry == nil || !f.Geometry.IsPoint() {
			p.errorf("detection feature %d is not a point", detections)
			continue
		}
		if detections < len(records) {
			r := records[detections]
			if r.Latitude != nil && r.Longitude != nil &&
				(math.Abs(f.Geometry.Point[1]-*r.Latitude) > coordTolerance || math.Abs(f.Geometry.Point[0]-*r.Longitude) > coordTolerance) {
				p.errorf("detection feature %d: coordinates differ from record", detections)
			}
		}
		detections++
	}
	if detections != len(records) {
		p.errorf("geojson has %d detection features, output has %d records", detections, len(records))
	}
	return p
}
