package matchup

import (
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/grid"
	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

// BuildQueryKeys converts a station series into grid query keys, one per
// observation, in input order. No filtering and no deduplication: rows that
// will later fail the tolerance checks still get a key, since the grid
// lookup is total and all policy lives in the window classifier.
func BuildQueryKeys(obs []models.Observation) []grid.QueryKey {
	keys := make([]grid.QueryKey, len(obs))
	for i, o := range obs {
		keys[i] = grid.QueryKey{
			Time: o.ObservedAt,
			Y:    o.Latitude,
			X:    o.Longitude,
		}
	}
	return keys
}
