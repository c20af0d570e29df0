package matchup

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Bwhiz/partial-convolution-lst-gap-filling/internal/models"
)

func groupFor(stationID string, n int, step time.Duration) []models.Observation {
	obs := make([]models.Observation, 0, n)
	for i := 0; i < n; i++ {
		o := obsAt(testT0.Add(time.Duration(i)*step), 15+float64(i))
		o.StationID = stationID
		obs = append(obs, o)
	}
	return obs
}

func TestMatchGroupsIsolatesFailures(t *testing.T) {
	good := groupFor("SFM00068816", 5, time.Hour)
	bad := groupFor("SFM00068826", 3, time.Hour)
	bad[1], bad[2] = bad[2], bad[1] // break the ordering for one station only

	groups := map[string][]models.Observation{
		good[0].StationID: good,
		bad[0].StationID:  bad,
	}

	results := MatchGroups(context.Background(), identityGrid(300), groups, DefaultParams(), 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// Sorted by station id, so the good group comes first.
	if results[0].StationID != "SFM00068816" || results[1].StationID != "SFM00068826" {
		t.Fatalf("results not sorted by station id: %s, %s", results[0].StationID, results[1].StationID)
	}
	if results[0].Err != nil {
		t.Errorf("good group failed: %v", results[0].Err)
	}
	if len(results[0].Pairs) != 4 {
		t.Errorf("good group emitted %d pairs, want 4", len(results[0].Pairs))
	}
	if results[1].Err == nil {
		t.Error("unordered group should fail")
	}
	if len(results[1].Pairs) != 0 {
		t.Errorf("failed group emitted %d pairs, want 0", len(results[1].Pairs))
	}
}

func TestMatchGroupsParallelismIsDeterministic(t *testing.T) {
	groups := make(map[string][]models.Observation)
	for _, id := range []string{"SF000041858", "SF001084620", "SFM00068816", "SFM00068842", "SFM00068906"} {
		groups[id] = groupFor(id, 10, time.Hour)
	}

	serial := MatchGroups(context.Background(), identityGrid(295), groups, DefaultParams(), 1)
	parallel := MatchGroups(context.Background(), identityGrid(295), groups, DefaultParams(), 8)

	if !reflect.DeepEqual(serial, parallel) {
		t.Error("worker count changed the aggregate result")
	}
}

func TestMatchGroupsEmptyInput(t *testing.T) {
	results := MatchGroups(context.Background(), identityGrid(295), nil, DefaultParams(), 4)
	if len(results) != 0 {
		t.Fatalf("got %d results for no groups, want 0", len(results))
	}
}
