package domain

// Canonical column names produced by the CSV decoder.
const (
	ColumnLat        = "lat"
	ColumnLon        = "lon"
	ColumnObservedAt = "observed_at"
	ColumnSatellite  = "satellite"
)

// RawRow is one decoded source row keyed by canonical column name.
type RawRow struct {
	Line   int               // 1-based line in the source file
	Fields map[string]string // canonical column -> raw value
	Err    error             // set when the row could not be decoded at all
}

// Batch is the full set of rows produced by one acquisition cycle.
type Batch struct {
	Source  string // file path or URL the rows were read from
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether the batch header contained the canonical column.
func (b Batch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// GeoPoint is a WGS-84 latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DetectionRecord is a validated hotspot detection.
type DetectionRecord struct {
	Point      GeoPoint
	ObservedAt string
	Satellite  string
	Line       int
}

// NoiseLabel identifies the cluster of points not density-reachable from any core point.
const NoiseLabel = -1

// Cluster is a group of detections identified by index into the input batch.
// Members are in ascending input order.
type Cluster struct {
	Label   int
	Members []int
}

// IsNoise reports whether c is the noise group.
func (c Cluster) IsNoise() bool { return c.Label == NoiseLabel }

// Size returns the number of members.
func (c Cluster) Size() int { return len(c.Members) }

// RegionRecord is the per-detection output record.
type RegionRecord struct {
	ObservationTimestamp string         `json:"observationTimestamp"`
	Municipality         string         `json:"municipality"`
	Intensity            IntensityLabel `json:"intensity"`
	Latitude             float64        `json:"latitude"`
	Longitude            float64        `json:"longitude"`

	// Carried for sinks that store richer rows; not part of the JSON schema.
	Cluster   int    `json:"-"`
	Satellite string `json:"-"`
}
