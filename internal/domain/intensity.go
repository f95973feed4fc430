package domain

import "fmt"

// IntensityLabel is the discrete burn intensity assigned to a region.
type IntensityLabel string

const (
	IntensityLow    IntensityLabel = "low"
	IntensityMedium IntensityLabel = "medium"
	IntensityHigh   IntensityLabel = "high"
)

// Rank orders labels from low (0) to high (2). Unknown labels rank -1.
func (l IntensityLabel) Rank() int {
	switch l {
	case IntensityLow:
		return 0
	case IntensityMedium:
		return 1
	case IntensityHigh:
		return 2
	default:
		return -1
	}
}

// Valid reports whether l is one of the three known labels.
func (l IntensityLabel) Valid() bool { return l.Rank() >= 0 }

const (
	// DefaultMediumThreshold is the smallest non-noise cluster size labelled medium.
	DefaultMediumThreshold = 3
	// LegacyMediumThreshold is the medium threshold used by some earlier deployments.
	LegacyMediumThreshold = 5
	// DefaultHighThreshold is the smallest non-noise cluster size labelled high.
	DefaultHighThreshold = 10
)

// Thresholds holds the cluster-size cut-offs for intensity classification.
type Thresholds struct {
	Medium int
	High   int
}

// DefaultThresholds returns medium >= 3, high >= 10.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: DefaultMediumThreshold, High: DefaultHighThreshold}
}

// Validate checks 1 <= Medium < High.
func (t Thresholds) Validate() error {
	if t.Medium < 1 {
		return fmt.Errorf("medium threshold must be at least 1, got %d", t.Medium)
	}
	if t.High <= t.Medium {
		return fmt.Errorf("high threshold (%d) must exceed medium threshold (%d)", t.High, t.Medium)
	}
	return nil
}

// Classify maps a cluster to its intensity. The noise group is always low.
func (t Thresholds) Classify(c Cluster) IntensityLabel {
	if c.IsNoise() {
		return IntensityLow
	}
	switch s := c.Size(); {
	case s >= t.High:
		return IntensityHigh
	case s >= t.Medium:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

// PointClass is the cluster membership and intensity of one input point.
type PointClass struct {
	Cluster   int
	Intensity IntensityLabel
}

// ClassifyPoints broadcasts each cluster's intensity to its members. The
// result is indexed by input position and has length n.
func (t Thresholds) ClassifyPoints(clusters []Cluster, n int) []PointClass {
	classes := make([]PointClass, n)
	for _, c := range clusters {
		label := t.Classify(c)
		for _, i := range c.Members {
			classes[i] = PointClass{Cluster: c.Label, Intensity: label}
		}
	}
	return classes
}
