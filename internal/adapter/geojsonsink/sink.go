// Package geojsonsink writes the region records of a run as a GeoJSON
// FeatureCollection for map viewers.
package geojsonsink

import (
	"context"
	"fmt"
	"log/slog"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/filesink"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// Feature kinds, stored in the "kind" property.
const (
	KindDetection = "detection"
	KindRegion    = "region"
)

// Sink replaces a GeoJSON file with each run's records.
type Sink struct {
	path   string
	logger *slog.Logger
}

// New creates a GeoJSON sink writing to path.
func New(path string, logger *slog.Logger) *Sink {
	return &Sink{path: path, logger: logger}
}

// Load writes one Point feature per record followed by one MultiPoint feature
// per non-noise cluster.
func (s *Sink) Load(_ context.Context, records []domain.RegionRecord) error {
	data, err := Build(records).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := filesink.WriteFileAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Info("wrote geojson", "path", s.path, "count", len(records))
	return nil
}

// Build converts records into a feature collection. GeoJSON positions are
// [longitude, latitude].
func Build(records []domain.RegionRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	type region struct {
		intensity domain.IntensityLabel
		coords    [][]float64
	}
	regions := make(map[int]*region)
	var order []int

	for _, r := range records {
		pos := []float64{r.Longitude, r.Latitude}

		f := geojson.NewPointFeature(pos)
		f.SetProperty("kind", KindDetection)
		f.SetProperty("observationTimestamp", r.ObservationTimestamp)
		f.SetProperty("municipality", r.Municipality)
		f.SetProperty("intensity", string(r.Intensity))
		f.SetProperty("cluster", r.Cluster)
		if r.Satellite != "" {
			f.SetProperty("satellite", r.Satellite)
		}
		fc.AddFeature(f)

		if r.Cluster == domain.NoiseLabel {
			continue
		}
		reg, ok := regions[r.Cluster]
		if !ok {
			reg = &region{intensity: r.Intensity}
			regions[r.Cluster] = reg
			order = append(order, r.Cluster)
		}
		reg.coords = append(reg.coords, pos)
	}

	for _, label := range order {
		reg := regions[label]
		f := geojson.NewMultiPointFeature(reg.coords...)
		f.SetProperty("kind", KindRegion)
		f.SetProperty("cluster", label)
		f.SetProperty("intensity", string(reg.intensity))
		f.SetProperty("size", len(reg.coords))
		fc.AddFeature(f)
	}
	return fc
}
