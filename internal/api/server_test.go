package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/store"
)

func testServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewServer(s, "0"), s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	rec := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestStations(t *testing.T) {
	srv, st := testServer(t)
	if err := st.UpsertStation(models.Station{
		StationID: "SFM00068816",
		Name:      "CAPE TOWN INTL",
		Latitude:  -33.9650,
		Longitude: 18.6017,
		Active:    true,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec := get(t, srv.Handler(), "/api/stations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stations []models.Station
	if err := json.NewDecoder(rec.Body).Decode(&stations); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stations) != 1 || stations[0].StationID != "SFM00068816" {
		t.Fatalf("got %+v", stations)
	}
}

func TestPairsWithoutRun(t *testing.T) {
	srv, _ := testServer(t)
	rec := get(t, srv.Handler(), "/api/pairs")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before any completed run", rec.Code)
	}
}

func TestPairsForLatestRun(t *testing.T) {
	srv, st := testServer(t)

	run, err := st.StartMatchupRun(1, 4)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	at := time.Date(2021, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := st.InsertPairedRecords(run.ID, []models.PairedRecord{{
		StationID:      "SFM00068816",
		ObservedAt:     at,
		MatchedTime:    at,
		MatchedLST:     295.0,
		PrevObservedAt: at.Add(-time.Hour),
	}}); err != nil {
		t.Fatalf("insert pairs: %v", err)
	}
	run.Success = true
	if err := st.CompleteMatchupRun(run); err != nil {
		t.Fatalf("complete run: %v", err)
	}

	rec := get(t, srv.Handler(), "/api/pairs?station=SFM00068816")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var pairs []models.PairedRecord
	if err := json.NewDecoder(rec.Body).Decode(&pairs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pairs) != 1 || pairs[0].MatchedLST != 295.0 {
		t.Fatalf("got %+v", pairs)
	}

	rec = get(t, srv.Handler(), "/api/pairs?station=NOPE")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with empty list", rec.Code)
	}
}

func TestRunsLimit(t *testing.T) {
	srv, st := testServer(t)
	for i := 0; i < 3; i++ {
		if _, err := st.StartMatchupRun(1, 4); err != nil {
			t.Fatalf("start run: %v", err)
		}
	}

	rec := get(t, srv.Handler(), "/api/runs?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var runs []store.MatchupRun
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}

func TestCalibrationStats(t *testing.T) {
	srv, st := testServer(t)
	if err := st.UpsertCalibrationStats(store.CalibrationStats{
		StationID:  "SFM00068816",
		Target:     "modis_lst",
		SampleSize: 120,
		Slope:      1.04,
		Intercept:  3.2,
		RSquared:   0.87,
		RMSE:       2.1,
		UpdatedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("upsert stats: %v", err)
	}

	rec := get(t, srv.Handler(), "/api/calibration")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats []store.CalibrationStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stats) != 1 || stats[0].Slope != 1.04 {
		t.Fatalf("got %+v", stats)
	}
}
