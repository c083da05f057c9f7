package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Billing metrics
	InvoicesGenerated      *prometheus.CounterVec
	InvoiceRenderLatency   prometheus.Histogram
	AuthorizationRejected  prometheus.Counter
	ZeroNominalCostPlans   prometheus.Counter
	InvoiceRoundingDrift   prometheus.Histogram
	OutstandingBalance     *prometheus.GaugeVec
	PatientsWithBalanceDue *prometheus.GaugeVec
}

// NewMetrics creates and registers all application metrics on reg. Tests
// pass a fresh prometheus.NewRegistry() so repeated construction does not
// collide.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		InvoicesGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_generated_total",
			Help:      "Invoices rendered, by outcome and whether lines were rescaled",
		}, []string{"status", "rescaled"}),
		InvoiceRenderLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoice_render_duration_seconds",
			Help:      "Time spent waiting for the invoice renderer",
			Buckets:   prometheus.DefBuckets,
		}),
		AuthorizationRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_rejected_total",
			Help:      "Authorized amounts rejected for exceeding nominal cost",
		}),
		ZeroNominalCostPlans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_nominal_cost_invoices_total",
			Help:      "Invoices whose lines all cost zero and were distributed evenly",
		}),
		InvoiceRoundingDrift: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoice_rounding_discrepancy",
			Help:      "Absolute difference between rescaled invoice total and authorized amount",
			Buckets:   []float64{0, .005, .01, .02, .05, .1, .5},
		}),
		OutstandingBalance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_balance",
			Help:      "Sum of positive outstanding balances by patient status",
		}, []string{"patient_status"}),
		PatientsWithBalanceDue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "patients_with_balance_due",
			Help:      "Patients with a positive outstanding balance by patient status",
		}, []string{"patient_status"}),
	}
}
