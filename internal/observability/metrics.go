// Package observability exposes the engine's Prometheus metrics. Counters are
// incremented at the service layer; /metrics is served by promhttp.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "requests_created_total", Help: "Ride requests created"})
	OffersBroadcast = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "offers_broadcast_total", Help: "Offers fanned out to drivers"})
	AcceptWins      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "accept_wins_total", Help: "Offer accepts that won the race"})
	AcceptLosses    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "accept_losses_total", Help: "Offer accepts that lost the race"})
	RidesCompleted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_completed_total", Help: "Orders that reached completed"})
	RidesCancelled  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_cancelled_total", Help: "Orders and requests cancelled"})
	RequestsExpired = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "requests_expired_total", Help: "Pending requests expired by the sweeper"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
