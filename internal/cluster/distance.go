package cluster

import "github.com/golang/geo/s1"

// EarthRadiusKm is the mean Earth radius used to convert angles to distances.
const EarthRadiusKm = 6371.0088

// kmToAngle converts a surface distance to a central angle.
func kmToAngle(km float64) s1.Angle {
	return s1.Angle(km / EarthRadiusKm)
}
