package matchup

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/grid"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/metrics"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

// GroupResult is the outcome of one station group's pass. A failed group
// carries its error without affecting any other group.
type GroupResult struct {
	StationID string
	Pairs     []models.PairedRecord
	Err       error
}

type job struct {
	stationID string
	obs       []models.Observation
}

// timedNearest records lookup latency without the core knowing about it.
type timedNearest struct {
	nn grid.NearestNeighbor
}

func (t timedNearest) Nearest(keys []grid.QueryKey) []grid.Sample {
	start := time.Now()
	samples := t.nn.Nearest(keys)
	metrics.GridNearestLatency.Observe(time.Since(start).Seconds())
	return samples
}

// MatchGroups fans station groups out over a worker pool. The grid is
// read-only and shared; each worker issues its own single batched query per
// group. Results come back sorted by station id so the aggregate output does
// not depend on scheduling order.
func MatchGroups(ctx context.Context, nn grid.NearestNeighbor, groups map[string][]models.Observation, p Params, workers int) []GroupResult {
	if workers <= 0 {
		workers = 4
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	timed := timedNearest{nn: nn}
	jobs := make(chan job)
	results := make(chan GroupResult, len(groups))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				pairs, err := MatchStation(timed, j.obs, p)
				if err != nil {
					metrics.MatchupGroupsFailed.Inc()
				} else {
					metrics.MatchupPairsEmitted.WithLabelValues(j.stationID).Add(float64(len(pairs)))
				}
				results <- GroupResult{StationID: j.stationID, Pairs: pairs, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for id, obs := range groups {
			select {
			case jobs <- job{stationID: id, obs: obs}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	out := make([]GroupResult, 0, len(groups))
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}
