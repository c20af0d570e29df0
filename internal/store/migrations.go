package store

import (
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS stations (
    station_id TEXT PRIMARY KEY,
    name TEXT,
    latitude REAL,
    longitude REAL,
    elevation REAL,
    active BOOLEAN DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS observations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id TEXT NOT NULL,
    observed_at DATETIME NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    temperature REAL,
    dew_point REAL,
    relative_humidity REAL,
    station_pressure REAL,
    wind_speed REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(station_id, observed_at)
);

CREATE INDEX IF NOT EXISTS idx_observations_station_time ON observations(station_id, observed_at);

CREATE TABLE IF NOT EXISTS matchup_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    match_tolerance_hours REAL NOT NULL,
    lookback_tolerance_hours REAL NOT NULL,
    stations_total INTEGER,
    stations_failed INTEGER,
    pairs_emitted INTEGER,
    success BOOLEAN DEFAULT FALSE,
    error_message TEXT
);

CREATE TABLE IF NOT EXISTS paired_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES matchup_runs(id),
    station_id TEXT NOT NULL,
    observed_at DATETIME NOT NULL,
    matched_time DATETIME NOT NULL,
    matched_lst REAL NOT NULL,
    time_offset_hours REAL NOT NULL,
    temperature REAL,
    dew_point REAL,
    relative_humidity REAL,
    station_pressure REAL,
    wind_speed REAL,
    prev_observed_at DATETIME NOT NULL,
    prev_temperature REAL,
    prev_dew_point REAL,
    prev_relative_humidity REAL,
    prev_station_pressure REAL,
    prev_wind_speed REAL,
    UNIQUE(run_id, station_id, observed_at)
);

CREATE INDEX IF NOT EXISTS idx_paired_records_station ON paired_records(station_id, observed_at);

CREATE TABLE IF NOT EXISTS calibration_stats (
    station_id TEXT NOT NULL,
    target TEXT NOT NULL,
    sample_size INTEGER NOT NULL,
    slope REAL NOT NULL,
    intercept REAL NOT NULL,
    r_squared REAL NOT NULL,
    rmse REAL NOT NULL,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (station_id, target)
);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    description TEXT,
    applied_at DATETIME
)`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
