package grid

import (
	"math"
	"testing"
)

func TestMeanSlabs(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name  string
		slabs [][]float64
		want  []float64
	}{
		{
			name:  "single slab passes through",
			slabs: [][]float64{{1, 2, nan}},
			want:  []float64{1, 2, nan},
		},
		{
			name:  "averages per cell",
			slabs: [][]float64{{300, 290, 280}, {302, 294, 286}},
			want:  []float64{301, 292, 283},
		},
		{
			name:  "NaN cells do not poison the mean",
			slabs: [][]float64{{300, nan, nan}, {nan, 294, nan}},
			want:  []float64{300, 294, nan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := meanSlabs(tt.slabs)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d cells, want %d", len(got), len(tt.want))
			}
			for i := range got {
				switch {
				case math.IsNaN(tt.want[i]):
					if !math.IsNaN(got[i]) {
						t.Errorf("cell %d = %v, want NaN", i, got[i])
					}
				case got[i] != tt.want[i]:
					t.Errorf("cell %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFlattenCube(t *testing.T) {
	cube := [][][]float32{
		{{1, 2}, {3, 4}},
		{{5, 6}, {7, 8}},
	}
	got, err := flattenCube(cube, 2, 2, 2)
	if err != nil {
		t.Fatalf("flattenCube: %v", err)
	}
	want := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := flattenCube(cube, 3, 2, 2); err == nil {
		t.Error("expected error for time axis mismatch")
	}
	if _, err := flattenCube([]string{"nope"}, 1, 1, 1); err == nil {
		t.Error("expected error for unsupported payload type")
	}
}

func TestEqualAxis(t *testing.T) {
	if !equalAxis([]float64{1, 2}, []float64{1, 2}) {
		t.Error("identical axes reported unequal")
	}
	if equalAxis([]float64{1, 2}, []float64{1, 2, 3}) {
		t.Error("length mismatch reported equal")
	}
	if equalAxis([]float64{1, 2}, []float64{1, 2.5}) {
		t.Error("value mismatch reported equal")
	}
}
