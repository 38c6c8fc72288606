package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tours_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	CheckoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tours_checkout_sessions_total",
			Help: "Checkout sessions requested from the payment provider",
		},
		[]string{"outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tours_webhook_events_total",
			Help: "Webhook deliveries by verification/reconciliation outcome",
		},
		[]string{"outcome"},
	)

	BookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tours_bookings_created_total",
			Help: "Bookings written by the reconciler",
		},
	)

	RatingRecalcTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tours_rating_recalc_total",
			Help: "Tour rating aggregate recalculations",
		},
	)

	MongoOpDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tours_mongo_op_seconds",
			Help:    "Duration of mongo operations",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(RequestsTotal, CheckoutSessionsTotal, WebhookEventsTotal, BookingsCreated, RatingRecalcTotal, MongoOpDuration)
}
