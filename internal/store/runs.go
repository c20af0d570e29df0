package store

import (
	"database/sql"
	"time"
)

// MatchupRun is the audit record for one matching pass over the station set.
type MatchupRun struct {
	ID                     int64
	StartedAt              time.Time
	FinishedAt             sql.NullTime
	MatchToleranceHours    float64
	LookbackToleranceHours float64
	StationsTotal          sql.NullInt64
	StationsFailed         sql.NullInt64
	PairsEmitted           sql.NullInt64
	Success                bool
	ErrorMessage           sql.NullString
}

// StartMatchupRun creates a new run record and returns it.
func (s *Store) StartMatchupRun(matchToleranceHours, lookbackToleranceHours float64) (*MatchupRun, error) {
	run := &MatchupRun{
		StartedAt:              time.Now().UTC(),
		MatchToleranceHours:    matchToleranceHours,
		LookbackToleranceHours: lookbackToleranceHours,
	}

	result, err := s.db.Exec(`
		INSERT INTO matchup_runs (started_at, match_tolerance_hours, lookback_tolerance_hours, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.MatchToleranceHours, run.LookbackToleranceHours)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteMatchupRun updates the run with its results.
func (s *Store) CompleteMatchupRun(run *MatchupRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE matchup_runs SET
			finished_at = ?,
			stations_total = ?,
			stations_failed = ?,
			pairs_emitted = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.StationsTotal, run.StationsFailed, run.PairsEmitted,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

// GetLatestRun returns the most recent successful run, or nil when none
// exists yet.
func (s *Store) GetLatestRun() (*MatchupRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, match_tolerance_hours, lookback_tolerance_hours,
			stations_total, stations_failed, pairs_emitted, success, error_message
		FROM matchup_runs
		WHERE success = TRUE
		ORDER BY started_at DESC
		LIMIT 1
	`)
	var run MatchupRun
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.MatchToleranceHours,
		&run.LookbackToleranceHours, &run.StationsTotal, &run.StationsFailed,
		&run.PairsEmitted, &run.Success, &run.ErrorMessage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRecentRuns returns the latest runs, newest first.
func (s *Store) GetRecentRuns(limit int) ([]MatchupRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, match_tolerance_hours, lookback_tolerance_hours,
			stations_total, stations_failed, pairs_emitted, success, error_message
		FROM matchup_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []MatchupRun
	for rows.Next() {
		var run MatchupRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.MatchToleranceHours,
			&run.LookbackToleranceHours, &run.StationsTotal, &run.StationsFailed,
			&run.PairsEmitted, &run.Success, &run.ErrorMessage); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
