package cluster

import (
	"slices"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// cellIndexThreshold is the batch size above which neighbour queries go
// through the S2 cell index instead of a full scan.
const cellIndexThreshold = 256

// neighborIndex answers "which points lie within eps of point i", self included.
// Results are in ascending index order.
type neighborIndex interface {
	within(i int) []int
}

type bruteForceIndex struct {
	points []s2.LatLng
	eps    s1.Angle
}

func (b *bruteForceIndex) within(i int) []int {
	var out []int
	for j := range b.points {
		if b.points[i].Distance(b.points[j]) <= b.eps {
			out = append(out, j)
		}
	}
	return out
}

// cellIndex buckets points by S2 cell at a level whose cells are at least eps
// wide, so a cap of radius eps is covered by a handful of cells.
type cellIndex struct {
	points []s2.LatLng
	eps    s1.Angle
	level  int
	cells  map[s2.CellID][]int
}

func newCellIndex(points []s2.LatLng, eps s1.Angle) *cellIndex {
	level := s2.MinWidthMetric.MaxLevel(eps.Radians())
	if level > s2.MaxLevel {
		level = s2.MaxLevel
	}

	idx := &cellIndex{
		points: points,
		eps:    eps,
		level:  level,
		cells:  make(map[s2.CellID][]int),
	}
	for i, ll := range points {
		id := s2.CellIDFromLatLng(ll).Parent(level)
		idx.cells[id] = append(idx.cells[id], i)
	}
	return idx
}

func (c *cellIndex) within(i int) []int {
	center := s2.PointFromLatLng(c.points[i])
	// Pad the cap slightly so points sitting exactly on the boundary are not
	// lost to rounding between the cap test and the haversine distance.
	capAngle := c.eps*(1+1e-9) + 1e-12
	region := s2.CapFromCenterAngle(center, capAngle)

	var out []int
	for _, id := range s2.SimpleRegionCovering(region, center, c.level) {
		for _, j := range c.cells[id] {
			if c.points[i].Distance(c.points[j]) <= c.eps {
				out = append(out, j)
			}
		}
	}
	slices.Sort(out)
	return out
}

func newIndex(points []s2.LatLng, eps s1.Angle, useCells bool) neighborIndex {
	if useCells {
		return newCellIndex(points, eps)
	}
	return &bruteForceIndex{points: points, eps: eps}
}
