package models

import (
	"database/sql"
	"time"
)

type Station struct {
	StationID string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation float64
	Active    bool
}

// Observation is a single station reading. Timestamps are UTC and must be
// unique per station; the matchup pass depends on strictly increasing order.
type Observation struct {
	ID               int64
	StationID        string
	ObservedAt       time.Time
	Latitude         float64
	Longitude        float64
	Temperature      sql.NullFloat64
	DewPoint         sql.NullFloat64
	RelativeHumidity sql.NullFloat64
	StationPressure  sql.NullFloat64
	WindSpeed        sql.NullFloat64
	CreatedAt        time.Time
}

// PairedRecord joins a station observation whose satellite match fell within
// the match tolerance with its immediate predecessor. MatchedLST and
// MatchedTime describe the current row's grid cell; the predecessor
// contributes its station variables only, since its own grid lookup refers to
// a different overpass.
type PairedRecord struct {
	ID              int64
	RunID           int64
	StationID       string
	ObservedAt      time.Time
	MatchedTime     time.Time
	MatchedLST      float64
	TimeOffsetHours float64

	Temperature      sql.NullFloat64
	DewPoint         sql.NullFloat64
	RelativeHumidity sql.NullFloat64
	StationPressure  sql.NullFloat64
	WindSpeed        sql.NullFloat64

	PrevObservedAt       time.Time
	PrevTemperature      sql.NullFloat64
	PrevDewPoint         sql.NullFloat64
	PrevRelativeHumidity sql.NullFloat64
	PrevStationPressure  sql.NullFloat64
	PrevWindSpeed        sql.NullFloat64
}
