package domain

import (
	"fmt"
	"strings"
)

// TimestampLayout formats the wall-clock fallback for batches without a time column.
const TimestampLayout = "2006-01-02 15:04:05"

// BatchTimestamp returns the observation timestamp shared by a whole batch:
// the time value of the first input row, whether or not that row is later
// dropped as malformed. The current time is used when the batch has no time
// column, no rows, or a blank value in the first row.
func BatchTimestamp(batch Batch) string {
	if batch.HasColumn(ColumnObservedAt) && len(batch.Rows) > 0 {
		if v := strings.TrimSpace(batch.Rows[0].Fields[ColumnObservedAt]); v != "" {
			return v
		}
	}
	return clock.Now().Format(TimestampLayout)
}

// Assemble zips per-point classification and locality into output records,
// one per detection, in input order.
func Assemble(records []DetectionRecord, classes []PointClass, localities []string, observedAt string) ([]RegionRecord, error) {
	if len(classes) != len(records) || len(localities) != len(records) {
		return nil, fmt.Errorf("assemble: %d records, %d classes, %d localities", len(records), len(classes), len(localities))
	}

	out := make([]RegionRecord, len(records))
	for i, rec := range records {
		locality := localities[i]
		if locality == "" {
			locality = UnknownLocality
		}
		out[i] = RegionRecord{
			ObservationTimestamp: observedAt,
			Municipality:         locality,
			Intensity:            classes[i].Intensity,
			Latitude:             rec.Point.Lat,
			Longitude:            rec.Point.Lon,
			Cluster:              classes[i].Cluster,
			Satellite:            rec.Satellite,
		}
	}
	return out, nil
}
