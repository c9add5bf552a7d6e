package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_client_requests_total",
			Help: "Total number of backend requests issued through the pipeline",
		},
		[]string{"method", "outcome"},
	)

	renewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_client_renewals_total",
			Help: "Total number of credential renewal flights",
		},
		[]string{"result"},
	)

	teardownsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_client_session_teardowns_total",
			Help: "Total number of forced session teardowns",
		},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_client_checkout_submissions_total",
			Help: "Total number of checkout submissions",
		},
		[]string{"result"},
	)

	persistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_client_persistence_failures_total",
			Help: "Total number of swallowed local persistence failures",
		},
		[]string{"op"},
	)

	cartSyncAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_client_cart_sync_attempts_total",
			Help: "Total number of background cart sync attempts",
		},
		[]string{"status"},
	)
)

func RecordRequest(method, outcome string) {
	requestsTotal.WithLabelValues(method, outcome).Inc()
}

func RecordRenewal(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	renewalsTotal.WithLabelValues(result).Inc()
}

func RecordTeardown() {
	teardownsTotal.Inc()
}

func RecordSubmission(result string) {
	submissionsTotal.WithLabelValues(result).Inc()
}

func RecordPersistenceFailure(op string) {
	persistenceFailuresTotal.WithLabelValues(op).Inc()
}

func RecordCartSync(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	cartSyncAttemptsTotal.WithLabelValues(status).Inc()
}
