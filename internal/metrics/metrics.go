package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalhop_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalhop_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	CallersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalhop_callers_registered_total",
			Help: "Total callers registered",
		},
	)

	JoinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalhop_room_joins_total",
			Help: "Total room joins",
		},
	)

	LeavesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalhop_room_leaves_total",
			Help: "Total room leaves",
		},
	)

	PollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalhop_polls_total",
			Help: "Total poll requests served",
		},
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalhop_signals_relayed_total",
			Help: "Total signals accepted for relay",
		},
		[]string{"kind"},
	)

	// Cleanup metrics
	ParticipantsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalhop_participants_reaped_total",
			Help: "Total stale participants removed",
		},
	)

	SignalsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalhop_signals_purged_total",
			Help: "Total signals removed by retention",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalhop_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalhop_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
