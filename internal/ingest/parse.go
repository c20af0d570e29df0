package ingest

import (
	"bufio"
	"bytes"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

// Fixed-width layout of ghcnh-station-list.txt.
var stationListCols = []struct {
	name       string
	start, end int
}{
	{"station_id", 0, 11},
	{"latitude", 12, 20},
	{"longitude", 21, 30},
	{"elevation", 31, 37},
	{"station_name", 38, 78},
}

// ParseStationList parses the fixed-width GHCNh station inventory. Lines
// whose coordinates fail to parse are skipped rather than failing the whole
// inventory.
func ParseStationList(data []byte, prefix string) ([]models.Station, error) {
	var stations []models.Station
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		id := fixedField(line, 0, 11)
		if id == "" || (prefix != "" && !strings.HasPrefix(id, prefix)) {
			continue
		}
		lat, err1 := strconv.ParseFloat(fixedField(line, 12, 20), 64)
		lon, err2 := strconv.ParseFloat(fixedField(line, 21, 30), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		elev, _ := strconv.ParseFloat(fixedField(line, 31, 37), 64)
		stations = append(stations, models.Station{
			StationID: id,
			Name:      fixedField(line, 38, 78),
			Latitude:  lat,
			Longitude: lon,
			Elevation: elev,
			Active:    true,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan station list: %w", err)
	}
	return stations, nil
}

func fixedField(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

// Variable columns carried into the matchup, by their normalized PSV names.
const (
	colTemperature = "temperature"
	colDewPoint    = "dew_point_temperature"
	colHumidity    = "relative_humidity"
	colPressure    = "station_level_pressure"
	colWindSpeed   = "wind_speed"
)

var requiredPSVCols = []string{"year", "month", "day", "hour", "minute", "latitude", "longitude"}

// ParsePSV parses a GHCNh pipe-separated archive. Columns are located by the
// header line, names normalized to lower_snake. The returned series is
// sorted ascending by timestamp and de-duplicated (first reading per
// timestamp wins), the form the matchup core requires.
func ParsePSV(stationID string, data []byte) ([]models.Observation, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("parse %s: empty archive", stationID)
	}
	idx := map[string]int{}
	for i, name := range strings.Split(scanner.Text(), "|") {
		idx[normalizeColumn(name)] = i
	}
	for _, col := range requiredPSVCols {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("parse %s: missing required column %q", stationID, col)
		}
	}

	var obs []models.Observation
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "|")
		o, ok := parsePSVRow(stationID, fields, idx)
		if !ok {
			continue
		}
		obs = append(obs, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", stationID, err)
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].ObservedAt.Before(obs[j].ObservedAt) })
	return dedupeByTime(obs), nil
}

func parsePSVRow(stationID string, fields []string, idx map[string]int) (models.Observation, bool) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	year, err1 := strconv.Atoi(get("year"))
	month, err2 := strconv.Atoi(get("month"))
	day, err3 := strconv.Atoi(get("day"))
	hour, err4 := strconv.Atoi(get("hour"))
	minute, err5 := strconv.Atoi(get("minute"))
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return models.Observation{}, false
	}
	lat, err6 := strconv.ParseFloat(get("latitude"), 64)
	lon, err7 := strconv.ParseFloat(get("longitude"), 64)
	if err6 != nil || err7 != nil {
		return models.Observation{}, false
	}

	return models.Observation{
		StationID:        stationID,
		ObservedAt:       time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC),
		Latitude:         lat,
		Longitude:        lon,
		Temperature:      nullFloat(get(colTemperature)),
		DewPoint:         nullFloat(get(colDewPoint)),
		RelativeHumidity: nullFloat(get(colHumidity)),
		StationPressure:  nullFloat(get(colPressure)),
		WindSpeed:        nullFloat(get(colWindSpeed)),
	}, true
}

func nullFloat(s string) sql.NullFloat64 {
	if s == "" || s == "NA" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

func dedupeByTime(obs []models.Observation) []models.Observation {
	if len(obs) < 2 {
		return obs
	}
	out := obs[:1]
	for _, o := range obs[1:] {
		if o.ObservedAt.Equal(out[len(out)-1].ObservedAt) {
			continue
		}
		out = append(out, o)
	}
	return out
}
