package usecase

import (
	"math"
	"sort"
	"time"
)

const DefaultClusterTolerance = 0.01

// LevelCluster is a non-empty group of nearby fractal points.
type LevelCluster struct {
	Points []FractalPoint
}

func (c LevelCluster) Mean() float64 {
	if len(c.Points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range c.Points {
		sum += p.Price
	}
	return sum / float64(len(c.Points))
}

// Span returns the first and last touch times.
func (c LevelCluster) Span() (first, last time.Time) {
	for i, p := range c.Points {
		if i == 0 || p.Time.Before(first) {
			first = p.Time
		}
		if i == 0 || p.Time.After(last) {
			last = p.Time
		}
	}
	return first, last
}

// LevelClusterer merges candidates whose price sits within tolerance of the
// running cluster mean. Tolerance is a fraction (0.01 = 1%).
type LevelClusterer struct {
	tolerance float64
}

func NewLevelClusterer(tolerance float64) *LevelClusterer {
	if tolerance <= 0 {
		tolerance = DefaultClusterTolerance
	}
	return &LevelClusterer{tolerance: tolerance}
}

func (c *LevelClusterer) Cluster(points []FractalPoint) []LevelCluster {
	if len(points) == 0 {
		return nil
	}

	sorted := make([]FractalPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price == sorted[j].Price {
			return sorted[i].Index < sorted[j].Index
		}
		return sorted[i].Price < sorted[j].Price
	})

	var clusters []LevelCluster
	current := LevelCluster{Points: []FractalPoint{sorted[0]}}
	sum := sorted[0].Price

	for _, p := range sorted[1:] {
		mean := sum / float64(len(current.Points))
		if mean > 0 && math.Abs(p.Price-mean)/mean <= c.tolerance {
			current.Points = append(current.Points, p)
			sum += p.Price
			continue
		}
		clusters = append(clusters, current)
		current = LevelCluster{Points: []FractalPoint{p}}
		sum = p.Price
	}
	clusters = append(clusters, current)

	return clusters
}
