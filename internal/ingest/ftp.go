package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/metrics"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

const (
	nceiFTPHost = "ftp.ncei.noaa.gov:21"

	ftpStationListFile = "/pub/data/ghcn/hourly/doc/ghcnh-station-list.txt"
	ftpByStationDir    = "/pub/data/ghcn/hourly/access/by-station"
)

// NCEIFTPClient fetches the same GHCNh files from NCEI's anonymous FTP
// mirror, for hosts where the HTTPS endpoint is throttled or blocked.
type NCEIFTPClient struct {
	host string
}

func NewNCEIFTPClient(host string) *NCEIFTPClient {
	if host == "" {
		host = nceiFTPHost
	}
	return &NCEIFTPClient{host: host}
}

func (c *NCEIFTPClient) FetchStationList(prefix string) ([]models.Station, error) {
	body, err := c.retrieve(ftpStationListFile)
	if err != nil {
		return nil, err
	}
	return ParseStationList(body, prefix)
}

func (c *NCEIFTPClient) FetchStationObservations(stationID string) ([]models.Observation, error) {
	path := fmt.Sprintf("%s/GHCNh_%s_por.psv", ftpByStationDir, stationID)

	start := time.Now()
	body, err := c.retrieve(path)
	metrics.GHCNAPILatency.WithLabelValues(stationID, "ftp").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GHCNAPICallsTotal.WithLabelValues(stationID, "ftp", "error").Inc()
		return nil, err
	}
	metrics.GHCNAPICallsTotal.WithLabelValues(stationID, "ftp", "ok").Inc()

	obs, err := ParsePSV(stationID, body)
	if err != nil {
		return nil, err
	}
	metrics.ObservationsIngested.WithLabelValues(stationID).Add(float64(len(obs)))
	return obs, nil
}

func (c *NCEIFTPClient) retrieve(path string) ([]byte, error) {
	conn, err := ftp.Dial(c.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr %s: %w", path, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
