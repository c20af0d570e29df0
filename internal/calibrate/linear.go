// Package calibrate fits the per-station linear relationship between station
// air temperature and matched satellite LST. The fitted line is what lets
// downstream gap filling convert 3-hourly station readings into LST
// estimates.
package calibrate

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/store"
)

// minSamples guards against fitting a line through noise; below this the
// station is skipped rather than stored with meaningless coefficients.
const minSamples = 10

const TargetLST = "modis_lst"

type Result struct {
	StationID  string
	SampleSize int
	Slope      float64
	Intercept  float64
	RSquared   float64
	RMSE       float64
}

// Fit computes the ordinary least squares line lst = intercept + slope*temp.
func Fit(stationID string, temps, lsts []float64) (*Result, error) {
	if len(temps) != len(lsts) {
		return nil, fmt.Errorf("calibrate %s: %d temperatures vs %d lst values", stationID, len(temps), len(lsts))
	}
	if len(temps) < minSamples {
		return nil, fmt.Errorf("calibrate %s: %d samples, need at least %d", stationID, len(temps), minSamples)
	}

	intercept, slope := stat.LinearRegression(temps, lsts, nil, false)
	r2 := stat.RSquared(temps, lsts, nil, intercept, slope)

	var sse float64
	for i, t := range temps {
		resid := lsts[i] - (intercept + slope*t)
		sse += resid * resid
	}
	rmse := math.Sqrt(sse / float64(len(temps)))

	return &Result{
		StationID:  stationID,
		SampleSize: len(temps),
		Slope:      slope,
		Intercept:  intercept,
		RSquared:   r2,
		RMSE:       rmse,
	}, nil
}

// Calibrator fits and persists calibration stats for every station in a run.
type Calibrator struct {
	store *store.Store
}

func NewCalibrator(s *store.Store) *Calibrator {
	return &Calibrator{store: s}
}

// ComputeRun fits each station with pairs in the given matchup run and
// upserts its stats. Stations with too few samples are skipped, not errors.
func (c *Calibrator) ComputeRun(runID int64) ([]Result, error) {
	stations, err := c.store.GetActiveStations()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var results []Result
	for _, st := range stations {
		samples, err := c.store.GetCalibrationSamples(st.StationID, runID)
		if err != nil {
			return nil, fmt.Errorf("samples for %s: %w", st.StationID, err)
		}
		if len(samples) < minSamples {
			continue
		}

		temps := make([]float64, len(samples))
		lsts := make([]float64, len(samples))
		for i, s := range samples {
			temps[i] = s.Temperature
			lsts[i] = s.MatchedLST
		}

		res, err := Fit(st.StationID, temps, lsts)
		if err != nil {
			return nil, err
		}

		if err := c.store.UpsertCalibrationStats(store.CalibrationStats{
			StationID:  res.StationID,
			Target:     TargetLST,
			SampleSize: res.SampleSize,
			Slope:      res.Slope,
			Intercept:  res.Intercept,
			RSquared:   res.RSquared,
			RMSE:       res.RMSE,
			UpdatedAt:  now,
		}); err != nil {
			return nil, fmt.Errorf("store stats for %s: %w", res.StationID, err)
		}
		results = append(results, *res)
	}
	return results, nil
}
