package domain

import (
	"context"
	"strings"
)

// Address holds the administrative fields returned by a reverse geocoder.
type Address struct {
	City          string
	Town          string
	Village       string
	Municipality  string
	County        string
	StateDistrict string
	State         string
	Country       string
	DisplayName   string
}

// Locality returns the first non-empty of city, town, village, municipality,
// county and state district, or "" when none is set.
func (a Address) Locality() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.Municipality, a.County, a.StateDistrict} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Geocoder resolves coordinates to an address.
type Geocoder interface {
	// ReverseGeocode converts coordinates to address details. Implementations
	// wrap retryable failures with ErrGeocodeTimeout.
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
}
