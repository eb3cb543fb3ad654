package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reel",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "prefetch_fetches_total",
		Help:      "Total prefetch requests issued, by priority tier.",
	}, []string{"tier"})

	FetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "prefetch_failures_total",
		Help:      "Total fetch failures by failure kind.",
	}, []string{"kind"})

	FetchBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "prefetch_bytes_total",
		Help:      "Total media bytes fetched into the cache.",
	})

	EvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "cache_evictions_total",
		Help:      "Total cache entries evicted from the tracking window.",
	})

	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reel",
		Name:      "cache_entries",
		Help:      "Number of feed indices currently tracked by the cache.",
	})

	CacheBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reel",
		Name:      "cache_bytes",
		Help:      "Total bytes of locally cached media.",
	})

	BatchEscalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "prefetch_batch_escalations_total",
		Help:      "Total eager batch escalations triggered by window position.",
	})

	InflightFetches = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reel",
		Name:      "prefetch_inflight",
		Help:      "Number of fetches currently in flight.",
	})

	SlotTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "slot_state_transitions_total",
		Help:      "Playback slot state transitions by from/to state.",
	}, []string{"from", "to"})

	SwapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "slot_swaps_total",
		Help:      "Total completed slot swaps.",
	})

	SwapDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reel",
		Name:      "slot_swap_duration_seconds",
		Help:      "Time from swap request to confirmed playback.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
	})

	NavigationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "navigations_total",
		Help:      "Total committed index changes.",
	})

	LikesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reel",
		Name:      "like_toggles_total",
		Help:      "Total double-tap like toggles.",
	})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reel",
		Name:      "ws_clients",
		Help:      "Number of connected WebSocket event clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		FetchesTotal,
		FetchFailuresTotal,
		FetchBytesTotal,
		EvictionsTotal,
		CacheEntries,
		CacheBytes,
		BatchEscalationsTotal,
		InflightFetches,
		SlotTransitionsTotal,
		SwapsTotal,
		SwapDuration,
		NavigationsTotal,
		LikesTotal,
		WSClients,
	)
}
