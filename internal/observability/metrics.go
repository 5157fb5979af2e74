package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_fetch_attempts_total",
			Help: "Fetch attempts by result (success, transient, rate_limited)",
		},
		[]string{"result"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricetracker_fetch_duration_seconds",
			Help:    "Duration of a single page fetch and extraction",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		},
	)

	Cooldowns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricetracker_rate_limit_cooldowns_total",
			Help: "Rate-limit cool-downs taken before a retry",
		},
	)

	Records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_records_total",
			Help: "Reconciled records by status",
		},
		[]string{"status"},
	)

	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_alerts_total",
			Help: "Price alerts by direction",
		},
		[]string{"direction"},
	)

	WindowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricetracker_window_duration_seconds",
			Help:    "Wall time of one concurrency window",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// Start registers the collectors and serves /metrics on port in the background.
func Start(port string) {
	prometheus.MustRegister(FetchAttempts, FetchDuration, Cooldowns, Records, Alerts, WindowDuration)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("port", port).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("port", port).Msg("metrics endpoint listening")
}
