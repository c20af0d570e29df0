package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GHCNAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lstmatch_ghcn_api_calls_total",
			Help: "Total GHCNh archive fetches",
		},
		[]string{"station", "transport", "status"},
	)

	GHCNAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lstmatch_ghcn_api_latency_seconds",
			Help:    "GHCNh archive fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"station", "transport"},
	)

	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lstmatch_observations_ingested_total",
			Help: "Total station observations successfully ingested",
		},
		[]string{"station"},
	)

	GridNearestLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lstmatch_grid_nearest_latency_seconds",
			Help:    "Batched nearest-neighbor lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatchupPairsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lstmatch_matchup_pairs_emitted_total",
			Help: "Paired records emitted per station",
		},
		[]string{"station"},
	)

	MatchupGroupsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lstmatch_matchup_groups_failed_total",
			Help: "Station groups rejected before window classification",
		},
	)
)
