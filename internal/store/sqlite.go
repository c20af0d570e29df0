package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertStation(st models.Station) error {
	_, err := s.db.Exec(`
		INSERT INTO stations (station_id, name, latitude, longitude, elevation, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			active = excluded.active
	`, st.StationID, st.Name, st.Latitude, st.Longitude, st.Elevation, st.Active)
	return err
}

func (s *Store) GetActiveStations() ([]models.Station, error) {
	rows, err := s.db.Query(`
		SELECT station_id, name, latitude, longitude, elevation, active
		FROM stations WHERE active = TRUE ORDER BY station_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.StationID, &st.Name, &st.Latitude, &st.Longitude, &st.Elevation, &st.Active); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// InsertObservations stores a station's series in one transaction, skipping
// readings already present for the same timestamp.
func (s *Store) InsertObservations(obs []models.Observation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO observations (station_id, observed_at, latitude, longitude, temperature, dew_point, relative_humidity, station_pressure, wind_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, observed_at) DO NOTHING
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.StationID, o.ObservedAt, o.Latitude, o.Longitude,
			o.Temperature, o.DewPoint, o.RelativeHumidity, o.StationPressure, o.WindSpeed); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert observation %s@%s: %w", o.StationID, o.ObservedAt.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// GetObservations returns a station's series in the window, ascending by
// timestamp. The unique index guarantees the de-duplication the matchup
// core expects.
func (s *Store) GetObservations(stationID string, start, end time.Time) ([]models.Observation, error) {
	rows, err := s.db.Query(`
		SELECT id, station_id, observed_at, latitude, longitude, temperature, dew_point, relative_humidity, station_pressure, wind_speed, created_at
		FROM observations
		WHERE station_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, stationID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.StationID, &o.ObservedAt, &o.Latitude, &o.Longitude,
			&o.Temperature, &o.DewPoint, &o.RelativeHumidity, &o.StationPressure, &o.WindSpeed, &o.CreatedAt); err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// GetObservationGroups loads every active station's series in the window,
// keyed by station id. Stations with no readings are omitted.
func (s *Store) GetObservationGroups(start, end time.Time) (map[string][]models.Observation, error) {
	stations, err := s.GetActiveStations()
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]models.Observation, len(stations))
	for _, st := range stations {
		obs, err := s.GetObservations(st.StationID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", st.StationID, err)
		}
		if len(obs) > 0 {
			groups[st.StationID] = obs
		}
	}
	return groups, nil
}

func (s *Store) InsertPairedRecords(runID int64, pairs []models.PairedRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO paired_records (run_id, station_id, observed_at, matched_time, matched_lst, time_offset_hours,
			temperature, dew_point, relative_humidity, station_pressure, wind_speed,
			prev_observed_at, prev_temperature, prev_dew_point, prev_relative_humidity, prev_station_pressure, prev_wind_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.Exec(runID, p.StationID, p.ObservedAt, p.MatchedTime, p.MatchedLST, p.TimeOffsetHours,
			p.Temperature, p.DewPoint, p.RelativeHumidity, p.StationPressure, p.WindSpeed,
			p.PrevObservedAt, p.PrevTemperature, p.PrevDewPoint, p.PrevRelativeHumidity, p.PrevStationPressure, p.PrevWindSpeed); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert pair %s@%s: %w", p.StationID, p.ObservedAt.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// GetPairedRecords returns the latest run's pairs for a station (all
// stations when stationID is empty), ascending by observation time.
func (s *Store) GetPairedRecords(stationID string, runID int64) ([]models.PairedRecord, error) {
	query := `
		SELECT id, run_id, station_id, observed_at, matched_time, matched_lst, time_offset_hours,
			temperature, dew_point, relative_humidity, station_pressure, wind_speed,
			prev_observed_at, prev_temperature, prev_dew_point, prev_relative_humidity, prev_station_pressure, prev_wind_speed
		FROM paired_records
		WHERE run_id = ?`
	args := []any{runID}
	if stationID != "" {
		query += ` AND station_id = ?`
		args = append(args, stationID)
	}
	query += ` ORDER BY station_id, observed_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []models.PairedRecord
	for rows.Next() {
		var p models.PairedRecord
		if err := rows.Scan(&p.ID, &p.RunID, &p.StationID, &p.ObservedAt, &p.MatchedTime, &p.MatchedLST, &p.TimeOffsetHours,
			&p.Temperature, &p.DewPoint, &p.RelativeHumidity, &p.StationPressure, &p.WindSpeed,
			&p.PrevObservedAt, &p.PrevTemperature, &p.PrevDewPoint, &p.PrevRelativeHumidity, &p.PrevStationPressure, &p.PrevWindSpeed); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// CalibrationSample is one (station temperature, matched LST) pair used to
// fit the station-to-LST relationship.
type CalibrationSample struct {
	Temperature float64
	MatchedLST  float64
}

func (s *Store) GetCalibrationSamples(stationID string, runID int64) ([]CalibrationSample, error) {
	rows, err := s.db.Query(`
		SELECT temperature, matched_lst
		FROM paired_records
		WHERE run_id = ? AND station_id = ? AND temperature IS NOT NULL
		ORDER BY observed_at ASC
	`, runID, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []CalibrationSample
	for rows.Next() {
		var c CalibrationSample
		if err := rows.Scan(&c.Temperature, &c.MatchedLST); err != nil {
			return nil, err
		}
		samples = append(samples, c)
	}
	return samples, rows.Err()
}

type CalibrationStats struct {
	StationID  string
	Target     string
	SampleSize int
	Slope      float64
	Intercept  float64
	RSquared   float64
	RMSE       float64
	UpdatedAt  time.Time
}

func (s *Store) UpsertCalibrationStats(stats CalibrationStats) error {
	_, err := s.db.Exec(`
		INSERT INTO calibration_stats (station_id, target, sample_size, slope, intercept, r_squared, rmse, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, target) DO UPDATE SET
			sample_size = excluded.sample_size,
			slope = excluded.slope,
			intercept = excluded.intercept,
			r_squared = excluded.r_squared,
			rmse = excluded.rmse,
			updated_at = excluded.updated_at
	`, stats.StationID, stats.Target, stats.SampleSize, stats.Slope, stats.Intercept, stats.RSquared, stats.RMSE, stats.UpdatedAt)
	return err
}

func (s *Store) GetCalibrationStats(stationID, target string) (*CalibrationStats, error) {
	row := s.db.QueryRow(`
		SELECT station_id, target, sample_size, slope, intercept, r_squared, rmse, updated_at
		FROM calibration_stats
		WHERE station_id = ? AND target = ?
	`, stationID, target)

	var stats CalibrationStats
	err := row.Scan(&stats.StationID, &stats.Target, &stats.SampleSize, &stats.Slope,
		&stats.Intercept, &stats.RSquared, &stats.RMSE, &stats.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Store) GetAllCalibrationStats() ([]CalibrationStats, error) {
	rows, err := s.db.Query(`
		SELECT station_id, target, sample_size, slope, intercept, r_squared, rmse, updated_at
		FROM calibration_stats
		ORDER BY station_id, target
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalibrationStats
	for rows.Next() {
		var stats CalibrationStats
		if err := rows.Scan(&stats.StationID, &stats.Target, &stats.SampleSize, &stats.Slope,
			&stats.Intercept, &stats.RSquared, &stats.RMSE, &stats.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}
