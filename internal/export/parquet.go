// Package export moves matchup data across the Parquet boundary: paired
// training tables out, station observation archives in.
package export

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

// PairRow is the Parquet schema for one paired record. Times are unix
// seconds. The anchor contributes its station variables only, suffixed
// _prev; its grid lookup and coordinates are intentionally absent.
type PairRow struct {
	StationID       string   `parquet:"station_id"`
	ObservedAt      int64    `parquet:"observed_at"`
	MatchedTime     int64    `parquet:"matched_time"`
	MatchedLST      float64  `parquet:"matched_lst"`
	TimeOffsetHours float64  `parquet:"time_offset_hours"`
	Temperature     *float64 `parquet:"temperature"`
	DewPoint        *float64 `parquet:"dew_point_temperature"`
	RelHumidity     *float64 `parquet:"relative_humidity"`
	StationPressure *float64 `parquet:"station_level_pressure"`
	WindSpeed       *float64 `parquet:"wind_speed"`

	PrevObservedAt  int64    `parquet:"observed_at_prev"`
	TemperaturePrev *float64 `parquet:"temperature_prev"`
	DewPointPrev    *float64 `parquet:"dew_point_temperature_prev"`
	RelHumidityPrev *float64 `parquet:"relative_humidity_prev"`
	PressurePrev    *float64 `parquet:"station_level_pressure_prev"`
	WindSpeedPrev   *float64 `parquet:"wind_speed_prev"`
}

// WritePairs writes paired records to a Parquet file, atomically via a temp
// file in the same directory.
func WritePairs(path string, pairs []models.PairedRecord) error {
	rows := make([]PairRow, len(pairs))
	for i, p := range pairs {
		rows[i] = PairRow{
			StationID:       p.StationID,
			ObservedAt:      p.ObservedAt.Unix(),
			MatchedTime:     p.MatchedTime.Unix(),
			MatchedLST:      p.MatchedLST,
			TimeOffsetHours: p.TimeOffsetHours,
			Temperature:     nullPtr(p.Temperature),
			DewPoint:        nullPtr(p.DewPoint),
			RelHumidity:     nullPtr(p.RelativeHumidity),
			StationPressure: nullPtr(p.StationPressure),
			WindSpeed:       nullPtr(p.WindSpeed),

			PrevObservedAt:  p.PrevObservedAt.Unix(),
			TemperaturePrev: nullPtr(p.PrevTemperature),
			DewPointPrev:    nullPtr(p.PrevDewPoint),
			RelHumidityPrev: nullPtr(p.PrevRelativeHumidity),
			PressurePrev:    nullPtr(p.PrevStationPressure),
			WindSpeedPrev:   nullPtr(p.PrevWindSpeed),
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := parquet.NewGenericWriter[PairRow](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// stationRow is the Parquet schema of the converted GHCNh archives.
type stationRow struct {
	StationID       string   `parquet:"station_id"`
	Time            int64    `parquet:"time"`
	Latitude        float64  `parquet:"latitude"`
	Longitude       float64  `parquet:"longitude"`
	Temperature     *float64 `parquet:"temperature"`
	DewPoint        *float64 `parquet:"dew_point_temperature"`
	RelHumidity     *float64 `parquet:"relative_humidity"`
	StationPressure *float64 `parquet:"station_level_pressure"`
	WindSpeed       *float64 `parquet:"wind_speed"`
}

var requiredColumns = []string{"station_id", "time", "latitude", "longitude"}

// ReadObservations loads one station archive. A missing required column is a
// schema error for that file; callers decide whether to continue with other
// files.
func ReadObservations(path string) ([]models.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	for _, col := range requiredColumns {
		if _, ok := pf.Schema().Lookup(col); !ok {
			return nil, fmt.Errorf("%s: missing required column %q", filepath.Base(path), col)
		}
	}

	reader := parquet.NewGenericReader[stationRow](pf)
	defer reader.Close()

	var obs []models.Observation
	buf := make([]stationRow, 1024)
	for {
		n, err := reader.Read(buf)
		for _, r := range buf[:n] {
			obs = append(obs, models.Observation{
				StationID:        r.StationID,
				ObservedAt:       time.Unix(r.Time, 0).UTC(),
				Latitude:         r.Latitude,
				Longitude:        r.Longitude,
				Temperature:      ptrNull(r.Temperature),
				DewPoint:         ptrNull(r.DewPoint),
				RelativeHumidity: ptrNull(r.RelHumidity),
				StationPressure:  ptrNull(r.StationPressure),
				WindSpeed:        ptrNull(r.WindSpeed),
			})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		// A decode failure mid-file must not pass off the rows read so far
		// as the whole archive.
		if err != nil {
			return nil, fmt.Errorf("%s: read rows: %w", filepath.Base(path), err)
		}
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].ObservedAt.Before(obs[j].ObservedAt) })
	return obs, nil
}

func nullPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func ptrNull(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
