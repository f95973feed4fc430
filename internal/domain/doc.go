// Package domain models wildfire hotspot detections and the regions derived
// from them.
//
// # Data Source
//
// Hotspot detections are published by satellite fire monitoring programmes
// (for example the INPE "focos" feed) as CSV files covering a 10-minute
// collection window. Each row is one thermal anomaly seen by one satellite
// pass. The acquisition adapters in internal/adapter fetch the newest file and
// decode it into [RawRow] values keyed by canonical column names.
//
// # Column Conventions
//
//	lat, latitude             decimal degrees, WGS-84, [-90, 90]
//	lon, longitude            decimal degrees, WGS-84, [-180, 180]
//	data_hora, data_hora_gmt  observation time as published, kept verbatim
//	satelite, satellite       satellite name, e.g. "AQUA_M-T"
//
// Headers are matched case-insensitively. Rows whose coordinates do not parse
// or fall outside the valid ranges are skipped as [MalformedRowError]s; the
// rest of the batch is processed.
//
// # Regions
//
// Co-located detections are grouped with density clustering (see
// internal/cluster) over great-circle distance. Every group, including the
// single noise group of isolated detections, is labelled with an
// [IntensityLabel] from its size:
//
//	noise group:  low, whatever its size
//	size >= 10:   high
//	size >= 3:    medium   (two historical deployments used 5, see [LegacyMediumThreshold])
//	otherwise:    low
//
// The label is broadcast to every member, so the output carries one
// [RegionRecord] per detection rather than one per region.
//
// # Localities
//
// Each detection is reverse geocoded independently. A lookup that times out is
// retried once; anything else degrades to [UnknownLocality]. The first
// non-empty address field wins in the order city, town, village,
// municipality, county, state district.
//
// # Observation Timestamp
//
// All records in a batch share one timestamp: the first row's time column, or
// the wall clock formatted with [TimestampLayout] when the feed has none.
package domain
