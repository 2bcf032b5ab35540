package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tracks the number of outbound calls to the analytics service.
	AnalyticsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_api_requests_total",
			Help: "Total number of analytics service requests made (by endpoint and status).",
		},
		[]string{"endpoint", "status"},
	)

	// Measures duration of outbound analytics service requests.
	AnalyticsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_api_request_duration_seconds",
			Help:    "Duration of analytics service requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint"},
	)

	// Token exchanges by class and outcome ("ok", "rejected", "error").
	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_exchanges_total",
			Help: "Token exchanges against the analytics service by class and outcome.",
		},
		[]string{"class", "outcome"},
	)

	// Token cache lookups by class and result ("hit", "miss").
	TokenCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_cache_lookups_total",
			Help: "Token cache lookups by class and result.",
		},
		[]string{"class", "result"},
	)

	// Forced re-authentications after an unauthorized response.
	ForcedRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_forced_refreshes_total",
			Help: "Forced token refreshes triggered by unauthorized responses.",
		},
		[]string{"class"},
	)
)

// ObserveDuration records the time taken since start on the given histogram.
func ObserveDuration(v *prometheus.HistogramVec, start time.Time, labels ...string) {
	v.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

func IncTokenExchange(class, outcome string) {
	TokenExchangesTotal.WithLabelValues(class, outcome).Inc()
}

func IncCacheLookup(class, result string) {
	TokenCacheLookupsTotal.WithLabelValues(class, result).Inc()
}

func IncForcedRefresh(class string) {
	ForcedRefreshesTotal.WithLabelValues(class).Inc()
}

func StartServer(addr string) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		http.ListenAndServe(addr, nil) //nolint:errcheck
	}()
}
