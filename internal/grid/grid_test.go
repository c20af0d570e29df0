package grid

import (
	"math"
	"testing"
	"time"
)

var gridT0 = time.Date(2021, 3, 14, 10, 0, 0, 0, time.UTC)

// twoStepGrid has overpasses at gridT0 and gridT0+3h over a 2x2 cell patch.
// Values encode their (time, y, x) position as 100*t + 10*y + x.
func twoStepGrid(t *testing.T) *Grid {
	t.Helper()
	times := []time.Time{gridT0, gridT0.Add(3 * time.Hour)}
	ys := []float64{-34.0, -33.5}
	xs := []float64{18.0, 18.5}
	values := []float64{
		0, 1, 10, 11, // t=0
		100, 101, 110, 111, // t=1
	}
	g, err := New(times, ys, xs, values)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNewValidation(t *testing.T) {
	times := []time.Time{gridT0, gridT0.Add(time.Hour)}
	ys := []float64{-34.0, -33.5}
	xs := []float64{18.0, 18.5}
	good := make([]float64, 8)

	tests := []struct {
		name   string
		times  []time.Time
		ys, xs []float64
		values []float64
	}{
		{"empty time axis", nil, ys, xs, good},
		{"value count mismatch", times, ys, xs, good[:7]},
		{"time axis not increasing", []time.Time{gridT0, gridT0}, ys, xs, good},
		{"descending spatial axis", times, []float64{-33.5, -34.0}, xs, good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.times, tt.ys, tt.xs, tt.values); err == nil {
				t.Fatal("expected construction error")
			}
		})
	}
}

func TestNearestLookup(t *testing.T) {
	g := twoStepGrid(t)

	tests := []struct {
		name      string
		key       QueryKey
		wantValue float64
		wantTime  time.Time
	}{
		{
			name:      "exact cell",
			key:       QueryKey{Time: gridT0, Y: -34.0, X: 18.0},
			wantValue: 0,
			wantTime:  gridT0,
		},
		{
			name:      "snaps to closest coordinates",
			key:       QueryKey{Time: gridT0.Add(10 * time.Minute), Y: -33.6, X: 18.4},
			wantValue: 11,
			wantTime:  gridT0,
		},
		{
			name:      "closer to second overpass",
			key:       QueryKey{Time: gridT0.Add(2 * time.Hour), Y: -34.0, X: 18.0},
			wantValue: 100,
			wantTime:  gridT0.Add(3 * time.Hour),
		},
		{
			name:      "before first overpass clamps",
			key:       QueryKey{Time: gridT0.Add(-24 * time.Hour), Y: -34.0, X: 18.0},
			wantValue: 0,
			wantTime:  gridT0,
		},
		{
			name:      "after last overpass clamps",
			key:       QueryKey{Time: gridT0.Add(48 * time.Hour), Y: -33.5, X: 18.5},
			wantValue: 111,
			wantTime:  gridT0.Add(3 * time.Hour),
		},
		{
			name:      "time midpoint resolves to earlier overpass",
			key:       QueryKey{Time: gridT0.Add(90 * time.Minute), Y: -34.0, X: 18.0},
			wantValue: 0,
			wantTime:  gridT0,
		},
		{
			name:      "spatial midpoint resolves to lower index",
			key:       QueryKey{Time: gridT0, Y: -33.75, X: 18.25},
			wantValue: 0,
			wantTime:  gridT0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := g.Nearest([]QueryKey{tt.key})
			if len(samples) != 1 {
				t.Fatalf("got %d samples, want 1", len(samples))
			}
			if samples[0].Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", samples[0].Value, tt.wantValue)
			}
			if !samples[0].Time.Equal(tt.wantTime) {
				t.Errorf("Time = %s, want %s", samples[0].Time, tt.wantTime)
			}
		})
	}
}

func TestNearestPreservesKeyOrder(t *testing.T) {
	g := twoStepGrid(t)
	keys := []QueryKey{
		{Time: gridT0.Add(4 * time.Hour), Y: -33.5, X: 18.5},
		{Time: gridT0, Y: -34.0, X: 18.0},
		{Time: gridT0.Add(time.Hour), Y: -33.5, X: 18.0},
	}
	samples := g.Nearest(keys)
	if len(samples) != len(keys) {
		t.Fatalf("got %d samples, want %d", len(samples), len(keys))
	}
	want := []float64{111, 0, 10}
	for i, s := range samples {
		if s.Value != want[i] {
			t.Errorf("sample %d = %v, want %v", i, s.Value, want[i])
		}
	}
}

func TestNearestReturnsNaNCells(t *testing.T) {
	times := []time.Time{gridT0}
	axes := []float64{0}
	g, err := New(times, axes, axes, []float64{math.NaN()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	samples := g.Nearest([]QueryKey{{Time: gridT0, Y: 0, X: 0}})
	if !math.IsNaN(samples[0].Value) {
		t.Errorf("Value = %v, want NaN passthrough", samples[0].Value)
	}
	if !samples[0].Time.Equal(gridT0) {
		t.Errorf("Time = %s, want %s even for missing cells", samples[0].Time, gridT0)
	}
}
