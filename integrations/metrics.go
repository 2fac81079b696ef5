package integrations

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trello_api_requests_total",
		Help: "Trello API calls by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trello_api_request_duration_seconds",
		Help:    "Latency of Trello API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)

func observeRequest(method, endpoint, status string, start time.Time) {
	requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	requestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}
