// Package matchup pairs station observations with their nearest satellite
// LST overpass and with the most recent prior observation that qualifies as
// a lookback anchor. One pass handles one station group; groups share no
// state.
package matchup

import (
	"fmt"
	"math"
	"time"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/grid"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

// Annotated is an observation with its grid sample attached positionally.
type Annotated struct {
	models.Observation
	MatchedLST  float64
	MatchedTime time.Time
	OffsetHours float64 // station time minus matched overpass time
}

// MatchStation runs the full selector → matcher → window classifier → joiner
// pass for one station's ordered series. It issues exactly one batched grid
// query. A series shorter than two observations legitimately yields zero
// pairs; unordered or duplicate timestamps are an error, since the window
// logic depends on positional adjacency.
func MatchStation(nn grid.NearestNeighbor, obs []models.Observation, p Params) ([]models.PairedRecord, error) {
	if err := validateSeries(obs); err != nil {
		return nil, err
	}
	if len(obs) < 2 {
		return nil, nil
	}

	keys := BuildQueryKeys(obs)
	samples := nn.Nearest(keys)
	if len(samples) != len(keys) {
		return nil, fmt.Errorf("matchup: grid returned %d samples for %d keys", len(samples), len(keys))
	}

	annotated := annotate(obs, samples)
	offsets := make([]float64, len(annotated))
	for i, a := range annotated {
		offsets[i] = a.OffsetHours
	}

	isCurrent, isPrevAnchor := ClassifyWindows(offsets, p)
	return join(annotated, isCurrent, isPrevAnchor), nil
}

func validateSeries(obs []models.Observation) error {
	for i := 1; i < len(obs); i++ {
		if !obs[i].ObservedAt.After(obs[i-1].ObservedAt) {
			return fmt.Errorf("matchup: timestamps not strictly increasing at index %d (%s then %s)",
				i, obs[i-1].ObservedAt.Format(time.RFC3339), obs[i].ObservedAt.Format(time.RFC3339))
		}
	}
	return nil
}

func annotate(obs []models.Observation, samples []grid.Sample) []Annotated {
	annotated := make([]Annotated, len(obs))
	for i := range obs {
		annotated[i] = Annotated{
			Observation: obs[i],
			MatchedLST:  samples[i].Value,
			MatchedTime: samples[i].Time,
			OffsetHours: obs[i].ObservedAt.Sub(samples[i].Time).Hours(),
		}
	}
	return annotated
}

// join pairs every current-match row with its immediate predecessor. The
// classifier guarantees the predecessor of a kept current row is exactly its
// anchor, so pairing is positional. Rows whose matched value is missing are
// dropped here, not treated as errors.
func join(annotated []Annotated, isCurrent, isPrevAnchor []bool) []models.PairedRecord {
	var pairs []models.PairedRecord
	for i := 1; i < len(annotated); i++ {
		if !isCurrent[i] || !isPrevAnchor[i-1] {
			continue
		}
		cur, prev := annotated[i], annotated[i-1]
		if math.IsNaN(cur.MatchedLST) {
			continue
		}
		pairs = append(pairs, models.PairedRecord{
			StationID:       cur.StationID,
			ObservedAt:      cur.ObservedAt,
			MatchedTime:     cur.MatchedTime,
			MatchedLST:      cur.MatchedLST,
			TimeOffsetHours: cur.OffsetHours,

			Temperature:      cur.Temperature,
			DewPoint:         cur.DewPoint,
			RelativeHumidity: cur.RelativeHumidity,
			StationPressure:  cur.StationPressure,
			WindSpeed:        cur.WindSpeed,

			PrevObservedAt:       prev.ObservedAt,
			PrevTemperature:      prev.Temperature,
			PrevDewPoint:         prev.DewPoint,
			PrevRelativeHumidity: prev.RelativeHumidity,
			PrevStationPressure:  prev.StationPressure,
			PrevWindSpeed:        prev.WindSpeed,
		})
	}
	return pairs
}
