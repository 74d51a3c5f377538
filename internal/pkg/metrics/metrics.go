package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests by route template, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_http_requests_total",
		Help: "Total HTTP requests handled",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auction_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// AuthEventsTotal counts credential flow outcomes, e.g. event=login result=ok.
	AuthEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_auth_events_total",
		Help: "Authentication flow outcomes",
	}, []string{"event", "result"})

	OTPSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_otp_sent_total",
		Help: "OTP emails dispatched by purpose and result",
	}, []string{"purpose", "result"})

	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_products_created_total",
		Help: "Product listings submitted for review",
	})

	ProductDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_product_decisions_total",
		Help: "Admin review decisions by resulting status",
	}, []string{"status"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_rate_limited_total",
		Help: "Requests rejected by throttling",
	}, []string{"limiter"})
)
