package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProbesTotal counts completed station probes. The "outcome" label separates
// live streams, live playlists and dead stations.
var ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "radio_manager_probes_total",
	Help: "Total station probes completed",
}, []string{"outcome"})

// DeadStations counts dead classifications per reason token (http_status,
// server_error, conn_error, timeout).
var DeadStations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "radio_manager_dead_stations_total",
	Help: "Dead station classifications",
}, []string{"reason"})

// ProbeDuration observes how long a single probe takes end to end.
var ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "radio_manager_probe_duration_seconds",
	Help:    "Duration of individual station probes",
	Buckets: prometheus.DefBuckets,
})

// StationsLoaded tracks the size of the current station table.
var StationsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "radio_manager_stations_loaded",
	Help: "Number of stations currently loaded",
})

// ActiveProbeRuns tracks check runs in flight. In practice 0 or 1, since the
// API rejects overlapping runs.
var ActiveProbeRuns = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "radio_manager_active_probe_runs",
	Help: "Probe runs currently in progress",
})
