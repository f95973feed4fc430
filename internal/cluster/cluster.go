// Package cluster groups hotspot detections into regions with density-based
// clustering (DBSCAN) over great-circle distance.
package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

const (
	// DefaultEpsKm is the neighbourhood radius.
	DefaultEpsKm = 10.0
	// DefaultMinPoints is the neighbourhood size, self included, that makes a core point.
	DefaultMinPoints = 2
)

// Params holds the DBSCAN parameters.
type Params struct {
	EpsKm     float64
	MinPoints int
}

// DefaultParams returns eps = 10 km, minPts = 2.
func DefaultParams() Params {
	return Params{EpsKm: DefaultEpsKm, MinPoints: DefaultMinPoints}
}

// Validate rejects non-positive radii and neighbourhood sizes.
func (p Params) Validate() error {
	if p.EpsKm <= 0 {
		return fmt.Errorf("eps must be positive, got %g km", p.EpsKm)
	}
	if p.EpsKm >= EarthRadiusKm*math.Pi {
		return errors.New("eps exceeds half the Earth's circumference")
	}
	if p.MinPoints < 1 {
		return fmt.Errorf("min points must be at least 1, got %d", p.MinPoints)
	}
	return nil
}

// DBSCAN partitions points into clusters. Every point lands in exactly one
// cluster; points reachable from no core point form a single noise cluster
// labelled domain.NoiseLabel, returned last.
//
// The partition does not depend on input order. Core points are grouped by
// connected component. A border point within eps of cores from different
// components joins its nearest core, ties going to the core with the smaller
// (lat, lon). Labels are numbered by each cluster's first member.
func DBSCAN(points []domain.GeoPoint, params Params) []domain.Cluster {
	return partition(points, params, len(points) > cellIndexThreshold)
}

func partition(points []domain.GeoPoint, params Params, useCells bool) []domain.Cluster {
	n := len(points)
	if n == 0 {
		return nil
	}

	lls := make([]s2.LatLng, n)
	for i, p := range points {
		lls[i] = s2.LatLngFromDegrees(p.Lat, p.Lon)
	}
	idx := newIndex(lls, kmToAngle(params.EpsKm), useCells)

	neighbors := make([][]int, n)
	core := make([]bool, n)
	for i := range lls {
		neighbors[i] = idx.within(i)
		core[i] = len(neighbors[i]) >= params.MinPoints
	}

	uf := newUnionFind(n)
	for i := range lls {
		if !core[i] {
			continue
		}
		for _, j := range neighbors[i] {
			if core[j] {
				uf.union(i, j)
			}
		}
	}

	// owner is the core point a point is attached to, or -1 for noise.
	owner := make([]int, n)
	for i := range lls {
		if core[i] {
			owner[i] = i
			continue
		}
		owner[i] = -1
		for _, j := range neighbors[i] {
			if core[j] && (owner[i] == -1 || closer(points, lls, i, j, owner[i])) {
				owner[i] = j
			}
		}
	}

	var clusters []domain.Cluster
	labels := make(map[int]int)
	noise := domain.Cluster{Label: domain.NoiseLabel}
	for i := range lls {
		if owner[i] == -1 {
			noise.Members = append(noise.Members, i)
			continue
		}
		root := uf.find(owner[i])
		label, ok := labels[root]
		if !ok {
			label = len(clusters)
			labels[root] = label
			clusters = append(clusters, domain.Cluster{Label: label})
		}
		clusters[label].Members = append(clusters[label].Members, i)
	}
	if len(noise.Members) > 0 {
		clusters = append(clusters, noise)
	}
	return clusters
}

// closer reports whether core a is a better owner for point i than core b.
func closer(points []domain.GeoPoint, lls []s2.LatLng, i, a, b int) bool {
	da, db := lls[i].Distance(lls[a]), lls[i].Distance(lls[b])
	if da != db {
		return da < db
	}
	if points[a].Lat != points[b].Lat {
		return points[a].Lat < points[b].Lat
	}
	return points[a].Lon < points[b].Lon
}
