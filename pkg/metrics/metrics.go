package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	BotsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herald_bots_total",
			Help: "Total number of bots by status",
		},
		[]string{"status"},
	)

	ServersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "herald_servers_total",
			Help: "Total number of servers",
		},
	)

	// Bot lifecycle metrics
	SessionStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_session_starts_total",
			Help: "Total number of session start attempts by result",
		},
		[]string{"result"},
	)

	SessionUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_session_updates_total",
			Help: "Total number of session info refreshes by result",
		},
		[]string{"result"},
	)

	SessionStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "herald_session_start_duration_seconds",
			Help:    "Time taken to bring a bot online in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BotRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_bot_restarts_total",
			Help: "Total number of restarts requested by session engines",
		},
	)

	FriendCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herald_bot_friend_count",
			Help: "Last observed following count per bot",
		},
		[]string{"bot_id"},
	)

	// Pool metrics
	PoolTasksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_pool_tasks_total",
			Help: "Total number of tasks submitted to the shared pool",
		},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_events_dropped_total",
			Help: "Total number of lifecycle events dropped by where they were dropped",
		},
		[]string{"stage"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(BotsTotal)
	prometheus.MustRegister(ServersTotal)
	prometheus.MustRegister(SessionStartsTotal)
	prometheus.MustRegister(SessionUpdatesTotal)
	prometheus.MustRegister(SessionStartDuration)
	prometheus.MustRegister(BotRestartsTotal)
	prometheus.MustRegister(FriendCount)
	prometheus.MustRegister(PoolTasksTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
