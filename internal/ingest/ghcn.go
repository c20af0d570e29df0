// Package ingest fetches GHCNh station metadata and observation archives.
// The matchup core never touches the network; everything latency- or
// failure-prone lives here.
package ingest

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/httputil"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/metrics"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

const (
	defaultBaseURL = "https://www.ncei.noaa.gov/oa/global-historical-climatology-network/hourly"

	stationListPath = "/doc/ghcnh-station-list.txt"
)

type GHCN struct {
	baseURL string
	client  *http.Client
}

func NewGHCN(baseURL string) *GHCN {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &GHCN{
		baseURL: baseURL,
		client:  httputil.NewClient(),
	}
}

// FetchStationList downloads the global station inventory and keeps stations
// whose id starts with prefix (empty prefix keeps everything).
func (g *GHCN) FetchStationList(prefix string) ([]models.Station, error) {
	body, err := g.get(g.baseURL+stationListPath, "inventory")
	if err != nil {
		return nil, err
	}
	return ParseStationList(body, prefix)
}

// FetchStationObservations downloads the full period-of-record PSV archive
// for one station and returns its parsed, timestamp-ordered series.
func (g *GHCN) FetchStationObservations(stationID string) ([]models.Observation, error) {
	url := fmt.Sprintf("%s/access/by-station/GHCNh_%s_por.psv", g.baseURL, stationID)

	start := time.Now()
	body, err := g.get(url, stationID)
	metrics.GHCNAPILatency.WithLabelValues(stationID, "http").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GHCNAPICallsTotal.WithLabelValues(stationID, "http", "error").Inc()
		return nil, err
	}
	metrics.GHCNAPICallsTotal.WithLabelValues(stationID, "http", "ok").Inc()

	obs, err := ParsePSV(stationID, body)
	if err != nil {
		return nil, err
	}
	metrics.ObservationsIngested.WithLabelValues(stationID).Add(float64(len(obs)))
	return obs, nil
}

func (g *GHCN) get(url, label string) ([]byte, error) {
	var body []byte
	operation := func() error {
		resp, err := g.client.Get(url)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", label, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", label, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return body, nil
}

// FetchResult records one station's fetch outcome so a failing station does
// not abort the batch; callers report the error ids at the end.
type FetchResult struct {
	StationID    string
	Observations []models.Observation
	Err          error
}

// Fetcher is satisfied by both the HTTP and FTP clients.
type Fetcher interface {
	FetchStationObservations(stationID string) ([]models.Observation, error)
}

// FetchAll fetches every station in order, collecting per-station failures
// instead of stopping at the first one.
func FetchAll(f Fetcher, stationIDs []string) []FetchResult {
	results := make([]FetchResult, 0, len(stationIDs))
	for _, id := range stationIDs {
		obs, err := f.FetchStationObservations(id)
		results = append(results, FetchResult{StationID: id, Observations: obs, Err: err})
	}
	return results
}
