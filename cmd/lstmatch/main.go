package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/api"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/calibrate"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/export"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/grid"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/ingest"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/matchup"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/store"
)

const dateLayout = "2006-01-02"

type cmdContext struct {
	store *store.Store
}

var cli struct {
	DB string `help:"Path to SQLite database." env:"LSTMATCH_DB" default:"data/lstmatch.db"`

	FetchStations fetchStationsCmd `cmd:"" name:"fetch-stations" help:"Fetch GHCNh station inventory and observation archives."`
	ImportParquet importParquetCmd `cmd:"" name:"import-parquet" help:"Import converted station archives from Parquet files."`
	Match         matchCmd         `cmd:"" help:"Match station observations against the MODIS LST grid."`
	Calibrate     calibrateCmd     `cmd:"" help:"Fit per-station temperature-to-LST regressions from the latest run."`
	Export        exportCmd        `cmd:"" help:"Write the latest run's paired records to Parquet."`
	Serve         serveCmd         `cmd:"" help:"Serve pipeline status and metrics over HTTP."`
}

type fetchStationsCmd struct {
	Prefix string `help:"Station id prefix filter (e.g. SF for South Africa)." env:"LSTMATCH_STATION_PREFIX" default:""`
	ViaFTP bool   `name:"via-ftp" help:"Use the NCEI FTP mirror instead of HTTPS."`
}

func (c *fetchStationsCmd) Run(ctx *cmdContext) error {
	ghcn := ingest.NewGHCN("")
	ftpClient := ingest.NewNCEIFTPClient("")

	var list []models.Station
	var err error
	if c.ViaFTP {
		list, err = ftpClient.FetchStationList(c.Prefix)
	} else {
		list, err = ghcn.FetchStationList(c.Prefix)
	}
	if err != nil {
		return fmt.Errorf("fetch station list: %w", err)
	}
	log.Printf("fetched %d stations", len(list))

	ids := make([]string, 0, len(list))
	for _, st := range list {
		if err := ctx.store.UpsertStation(st); err != nil {
			return fmt.Errorf("upsert station %s: %w", st.StationID, err)
		}
		ids = append(ids, st.StationID)
	}

	var fetcher ingest.Fetcher = ghcn
	if c.ViaFTP {
		fetcher = ftpClient
	}

	var errorIDs []string
	for _, res := range ingest.FetchAll(fetcher, ids) {
		if res.Err != nil {
			log.Printf("fetch %s: %v", res.StationID, res.Err)
			errorIDs = append(errorIDs, res.StationID)
			continue
		}
		if err := ctx.store.InsertObservations(res.Observations); err != nil {
			return fmt.Errorf("store %s: %w", res.StationID, err)
		}
		log.Printf("stored %d observations for %s", len(res.Observations), res.StationID)
	}
	if len(errorIDs) > 0 {
		log.Printf("failed stations: %v", errorIDs)
	}
	return nil
}

type importParquetCmd struct {
	Dir string `arg:"" help:"Directory of station archive Parquet files." type:"existingdir"`
}

func (c *importParquetCmd) Run(ctx *cmdContext) error {
	paths, err := filepath.Glob(filepath.Join(c.Dir, "*.parquet"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .parquet files in %s", c.Dir)
	}

	var failed []string
	for _, path := range paths {
		obs, err := export.ReadObservations(path)
		if err != nil {
			log.Printf("import %s: %v", path, err)
			failed = append(failed, path)
			continue
		}
		if len(obs) == 0 {
			continue
		}
		if err := ctx.store.UpsertStation(stationFromObs(obs[0])); err != nil {
			return err
		}
		if err := ctx.store.InsertObservations(obs); err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
		log.Printf("imported %d observations from %s", len(obs), filepath.Base(path))
	}
	if len(failed) > 0 {
		log.Printf("failed files: %v", failed)
	}
	return nil
}

// stationFromObs derives a station row from an imported archive, which
// carries coordinates but no inventory metadata.
func stationFromObs(o models.Observation) models.Station {
	return models.Station{
		StationID: o.StationID,
		Latitude:  o.Latitude,
		Longitude: o.Longitude,
		Active:    true,
	}
}

type matchCmd struct {
	GridDir  string  `help:"Directory of MODIS LST netCDF exports." env:"LSTMATCH_GRID_DIR" default:"data/modis"`
	Start    string  `help:"Start date (YYYY-MM-DD); defaults to the grid's first overpass."`
	End      string  `help:"End date (YYYY-MM-DD); defaults to the grid's last overpass."`
	Match    float64 `name:"match-tolerance" help:"Current-match tolerance in hours." default:"1"`
	Lookback float64 `name:"lookback-tolerance" help:"Previous-anchor tolerance in hours." default:"4"`
	Workers  int     `help:"Station groups matched in parallel." default:"0"`
	Out      string  `help:"Optional Parquet output path for the paired records."`
}

func (c *matchCmd) Run(ctx *cmdContext) error {
	g, err := grid.LoadDir(c.GridDir)
	if err != nil {
		return fmt.Errorf("load grid: %w", err)
	}
	times := g.Times()
	log.Printf("grid loaded: %d overpasses, %s to %s", len(times),
		times[0].Format(time.RFC3339), times[len(times)-1].Format(time.RFC3339))

	start, end := times[0], times[len(times)-1]
	if c.Start != "" {
		if start, err = time.Parse(dateLayout, c.Start); err != nil {
			return fmt.Errorf("parse --start: %w", err)
		}
	}
	if c.End != "" {
		if end, err = time.Parse(dateLayout, c.End); err != nil {
			return fmt.Errorf("parse --end: %w", err)
		}
		end = end.Add(24*time.Hour - time.Second)
	}

	groups, err := ctx.store.GetObservationGroups(start, end)
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	if len(groups) == 0 {
		return fmt.Errorf("no observations between %s and %s", start.Format(dateLayout), end.Format(dateLayout))
	}

	params := matchup.Params{
		MatchTolerance:    time.Duration(c.Match * float64(time.Hour)),
		LookbackTolerance: time.Duration(c.Lookback * float64(time.Hour)),
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	run, err := ctx.store.StartMatchupRun(c.Match, c.Lookback)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	results := matchup.MatchGroups(context.Background(), g, groups, params, workers)

	var all []matchup.GroupResult
	var failed int
	var pairCount int64
	for _, res := range results {
		if res.Err != nil {
			log.Printf("station %s: %v", res.StationID, res.Err)
			failed++
			continue
		}
		pairCount += int64(len(res.Pairs))
		all = append(all, res)
	}

	for _, res := range all {
		if err := ctx.store.InsertPairedRecords(run.ID, res.Pairs); err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
			if cerr := ctx.store.CompleteMatchupRun(run); cerr != nil {
				log.Printf("complete run %d: %v", run.ID, cerr)
			}
			return fmt.Errorf("store pairs for %s: %w", res.StationID, err)
		}
	}

	run.StationsTotal = sql.NullInt64{Int64: int64(len(groups)), Valid: true}
	run.StationsFailed = sql.NullInt64{Int64: int64(failed), Valid: true}
	run.PairsEmitted = sql.NullInt64{Int64: pairCount, Valid: true}
	run.Success = true
	if err := ctx.store.CompleteMatchupRun(run); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	log.Printf("run %d: %d pairs from %d stations (%d failed)", run.ID, pairCount, len(groups), failed)

	if c.Out != "" {
		pairs, err := ctx.store.GetPairedRecords("", run.ID)
		if err != nil {
			return err
		}
		if err := export.WritePairs(c.Out, pairs); err != nil {
			return fmt.Errorf("write %s: %w", c.Out, err)
		}
		log.Printf("wrote %d pairs to %s", len(pairs), c.Out)
	}
	return nil
}

type calibrateCmd struct{}

func (c *calibrateCmd) Run(ctx *cmdContext) error {
	run, err := ctx.store.GetLatestRun()
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no completed matchup run; run `lstmatch match` first")
	}

	results, err := calibrate.NewCalibrator(ctx.store).ComputeRun(run.ID)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Printf("%s: lst = %.3f + %.3f*temp (r²=%.3f rmse=%.2f n=%d)",
			r.StationID, r.Intercept, r.Slope, r.RSquared, r.RMSE, r.SampleSize)
	}
	log.Printf("calibrated %d stations from run %d", len(results), run.ID)
	return nil
}

type exportCmd struct {
	Out string `arg:"" help:"Parquet output path."`
}

func (c *exportCmd) Run(ctx *cmdContext) error {
	run, err := ctx.store.GetLatestRun()
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no completed matchup run; run `lstmatch match` first")
	}
	pairs, err := ctx.store.GetPairedRecords("", run.ID)
	if err != nil {
		return err
	}
	if err := export.WritePairs(c.Out, pairs); err != nil {
		return err
	}
	log.Printf("wrote %d pairs from run %d to %s", len(pairs), run.ID, c.Out)
	return nil
}

type serveCmd struct {
	Port string `help:"HTTP server port." env:"LSTMATCH_PORT" default:"8080"`
}

func (c *serveCmd) Run(ctx *cmdContext) error {
	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(ctx.store, c.Port)
	log.Printf("starting server on :%s", c.Port)
	return server.Run(sigCtx)
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("lstmatch"),
		kong.Description("Pairs GHCNh station observations with MODIS LST overpasses for gap-fill training."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	kctx.FatalIfErrorf(kctx.Run(&cmdContext{store: st}))
}
