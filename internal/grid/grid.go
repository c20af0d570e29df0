// Package grid holds the satellite LST grid and its nearest-neighbor lookup.
package grid

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// QueryKey addresses a single point on the (time, y, x) axes.
type QueryKey struct {
	Time time.Time
	Y    float64 // latitude, degrees
	X    float64 // longitude, degrees
}

// Sample is the result of a nearest-neighbor lookup. Value is NaN when the
// matched cell holds no data; Time is the actual time coordinate of the
// matched cell, which generally differs from the query time.
type Sample struct {
	Value float64
	Time  time.Time
}

// NearestNeighbor is the lookup capability the matchup core depends on.
// Implementations must be total: every key yields a sample, however far the
// closest cell is. Tolerance policy belongs to the caller.
type NearestNeighbor interface {
	Nearest(keys []QueryKey) []Sample
}

// Grid is an in-memory (time, y, x) grid of LST values. Axes are ascending;
// missing cells are NaN. Grids are immutable after construction and safe for
// concurrent readers.
type Grid struct {
	times  []time.Time
	ys     []float64
	xs     []float64
	values []float64 // time-major, then y, then x
}

func New(times []time.Time, ys, xs, values []float64) (*Grid, error) {
	if len(times) == 0 || len(ys) == 0 || len(xs) == 0 {
		return nil, fmt.Errorf("grid: empty axis (times=%d ys=%d xs=%d)", len(times), len(ys), len(xs))
	}
	if want := len(times) * len(ys) * len(xs); len(values) != want {
		return nil, fmt.Errorf("grid: %d values, want %d", len(values), want)
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("grid: time axis not strictly increasing at %d", i)
		}
	}
	if !sort.Float64sAreSorted(ys) || !sort.Float64sAreSorted(xs) {
		return nil, fmt.Errorf("grid: spatial axes must be ascending")
	}
	return &Grid{times: times, ys: ys, xs: xs, values: values}, nil
}

func (g *Grid) Times() []time.Time { return g.times }

// Nearest returns one sample per key, in key order. Ties between two equally
// distant time steps resolve to the earlier one, so repeated runs over the
// same snapshot are deterministic.
func (g *Grid) Nearest(keys []QueryKey) []Sample {
	samples := make([]Sample, len(keys))
	for i, k := range keys {
		ti := g.nearestTime(k.Time)
		yi := nearestIndex(g.ys, k.Y)
		xi := nearestIndex(g.xs, k.X)
		samples[i] = Sample{
			Value: g.values[(ti*len(g.ys)+yi)*len(g.xs)+xi],
			Time:  g.times[ti],
		}
	}
	return samples
}

func (g *Grid) nearestTime(t time.Time) int {
	n := len(g.times)
	i := sort.Search(n, func(j int) bool { return !g.times[j].Before(t) })
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	// i-1 wins ties: earliest grid time.
	after := g.times[i].Sub(t)
	before := t.Sub(g.times[i-1])
	if before <= after {
		return i - 1
	}
	return i
}

// nearestIndex finds the closest entry in an ascending slice, preferring the
// lower index on exact midpoints.
func nearestIndex(axis []float64, v float64) int {
	n := len(axis)
	i := sort.SearchFloat64s(axis, v)
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	if math.Abs(v-axis[i-1]) <= math.Abs(axis[i]-v) {
		return i - 1
	}
	return i
}
