package grid

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Variable names in the preprocessed MODIS LST exports. Each file carries a
// modis_LST cube with a time axis (unix seconds, one entry per overpass) and
// y/x axes in degrees.
const (
	lstVarName  = "modis_LST"
	timeVarName = "time"
	yVarName    = "y"
	xVarName    = "x"
)

// LoadDir builds a Grid from every *.nc file in dir. All files must share the
// same spatial axes. Overpasses appearing in more than one file (or more than
// once, after the upstream view-time rounding) are averaged per cell,
// ignoring missing values, and the merged time axis is sorted ascending.
func LoadDir(dir string) (*Grid, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.nc"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("grid: no .nc files in %s", dir)
	}
	sort.Strings(paths)

	var ys, xs []float64
	slabs := map[int64][][]float64{} // unix seconds -> flattened y*x slabs

	for _, path := range paths {
		f, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if ys == nil {
			ys, xs = f.ys, f.xs
		} else if !equalAxis(ys, f.ys) || !equalAxis(xs, f.xs) {
			return nil, fmt.Errorf("load %s: spatial axes differ from %s", path, paths[0])
		}
		for i, t := range f.times {
			slab := f.values[i*len(ys)*len(xs) : (i+1)*len(ys)*len(xs)]
			slabs[t] = append(slabs[t], slab)
		}
	}

	secs := make([]int64, 0, len(slabs))
	for t := range slabs {
		secs = append(secs, t)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	times := make([]time.Time, len(secs))
	values := make([]float64, 0, len(secs)*len(ys)*len(xs))
	for i, t := range secs {
		times[i] = time.Unix(t, 0).UTC()
		values = append(values, meanSlabs(slabs[t])...)
	}

	return New(times, ys, xs, values)
}

type ncFile struct {
	times  []int64
	ys, xs []float64
	values []float64
}

func loadFile(path string) (*ncFile, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	times, err := int64Var(nc, timeVarName)
	if err != nil {
		return nil, err
	}
	ys, err := float64Var(nc, yVarName)
	if err != nil {
		return nil, err
	}
	xs, err := float64Var(nc, xVarName)
	if err != nil {
		return nil, err
	}

	vg, err := nc.GetVarGetter(lstVarName)
	if err != nil {
		return nil, err
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, err
	}
	values, err := flattenCube(raw, len(times), len(ys), len(xs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", lstVarName, err)
	}

	return &ncFile{times: times, ys: ys, xs: xs, values: values}, nil
}

func int64Var(nc api.Group, name string) ([]int64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case []int64:
		return v, nil
	case []int32:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []float64:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", name, raw)
	}
}

func float64Var(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", name, raw)
	}
}

func flattenCube(raw any, nt, ny, nx int) ([]float64, error) {
	out := make([]float64, 0, nt*ny*nx)
	switch cube := raw.(type) {
	case [][][]float64:
		if len(cube) != nt {
			return nil, fmt.Errorf("%d time slabs, want %d", len(cube), nt)
		}
		for _, slab := range cube {
			for _, row := range slab {
				out = append(out, row...)
			}
		}
	case [][][]float32:
		if len(cube) != nt {
			return nil, fmt.Errorf("%d time slabs, want %d", len(cube), nt)
		}
		for _, slab := range cube {
			for _, row := range slab {
				for _, v := range row {
					out = append(out, float64(v))
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
	if len(out) != nt*ny*nx {
		return nil, fmt.Errorf("%d values, want %d", len(out), nt*ny*nx)
	}
	return out, nil
}

func equalAxis(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// meanSlabs averages per-cell across slabs sharing an overpass time. Cells
// missing in every slab stay NaN.
func meanSlabs(slabs [][]float64) []float64 {
	if len(slabs) == 1 {
		return slabs[0]
	}
	out := make([]float64, len(slabs[0]))
	for i := range out {
		var sum float64
		var n int
		for _, slab := range slabs {
			if !math.IsNaN(slab[i]) {
				sum += slab[i]
				n++
			}
		}
		if n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}
