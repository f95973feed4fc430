package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var errMissingValue = errors.New("missing value")

// BuildRecords validates raw rows into detection records. Rows that cannot be
// used are returned as MalformedRowErrors and left out of the result; the
// relative order of the remaining rows is preserved.
func BuildRecords(rows []RawRow) ([]DetectionRecord, []*MalformedRowError) {
	records := make([]DetectionRecord, 0, len(rows))
	var malformed []*MalformedRowError

	for _, row := range rows {
		rec, err := buildRecord(row)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		records = append(records, rec)
	}
	return records, malformed
}

func buildRecord(row RawRow) (DetectionRecord, *MalformedRowError) {
	if row.Err != nil {
		return DetectionRecord{}, &MalformedRowError{Line: row.Line, Reason: "undecodable row", Err: row.Err}
	}

	lat, err := parseCoordinate(row.Fields[ColumnLat], 90)
	if err != nil {
		return DetectionRecord{}, &MalformedRowError{Line: row.Line, Reason: "invalid latitude", Err: err}
	}
	lon, err := parseCoordinate(row.Fields[ColumnLon], 180)
	if err != nil {
		return DetectionRecord{}, &MalformedRowError{Line: row.Line, Reason: "invalid longitude", Err: err}
	}

	return DetectionRecord{
		Point:      GeoPoint{Lat: lat, Lon: lon},
		ObservedAt: strings.TrimSpace(row.Fields[ColumnObservedAt]),
		Satellite:  strings.TrimSpace(row.Fields[ColumnSatellite]),
		Line:       row.Line,
	}, nil
}

// parseCoordinate parses a decimal-degree value and checks it lies in [-limit, limit].
// A decimal comma is accepted when the value has no decimal point.
func parseCoordinate(s string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMissingValue
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -limit || v > limit {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// Points extracts the coordinates of records in order.
func Points(records []DetectionRecord) []GeoPoint {
	points := make([]GeoPoint, len(records))
	for i, r := range records {
		points[i] = r.Point
	}
	return points
}
