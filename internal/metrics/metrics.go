// Package metrics holds the Prometheus collectors for the loan lifecycle
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pawn"

// Metrics is the collector set. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	LoansCreatedTotal  prometheus.Counter
	RepaymentsTotal    prometheus.Counter
	RepaymentAmount    prometheus.Counter
	JobRunsTotal       *prometheus.CounterVec
	JobLoansProcessed  *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_transitions_total",
			Help:      "Applied loan status transitions",
		}, []string{"from", "to", "event"}),
		TransitionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_transition_failures_total",
			Help:      "Rejected or failed loan status transitions",
		}, []string{"event", "code"}),
		LoansCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_created_total",
			Help:      "Loans issued",
		}),
		RepaymentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repayments_total",
			Help:      "Recorded repayments",
		}),
		RepaymentAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repayment_amount_total",
			Help:      "Sum of recorded repayment amounts",
		}),
		JobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions",
		}, []string{"job", "outcome"}),
		JobLoansProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_loans_processed_total",
			Help:      "Loans handled by scheduled jobs",
		}, []string{"job", "outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TransitionsTotal,
			m.TransitionFailures,
			m.LoansCreatedTotal,
			m.RepaymentsTotal,
			m.RepaymentAmount,
			m.JobRunsTotal,
			m.JobLoansProcessed,
			m.HTTPRequestsTotal,
			m.HTTPRequestSeconds,
		)
	}

	return m
}

func (m *Metrics) Transition(from, to, event string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to, event).Inc()
}

func (m *Metrics) TransitionFailed(event, code string) {
	if m == nil {
		return
	}
	m.TransitionFailures.WithLabelValues(event, code).Inc()
}

func (m *Metrics) LoanCreated() {
	if m == nil {
		return
	}
	m.LoansCreatedTotal.Inc()
}

func (m *Metrics) Repayment(amount float64) {
	if m == nil {
		return
	}
	m.RepaymentsTotal.Inc()
	m.RepaymentAmount.Add(amount)
}

// JobRun records one execution and its per-loan outcome counts
func (m *Metrics) JobRun(job string, processed, failed int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.JobRunsTotal.WithLabelValues(job, outcome).Inc()
	m.JobLoansProcessed.WithLabelValues(job, "processed").Add(float64(processed))
	m.JobLoansProcessed.WithLabelValues(job, "failed").Add(float64(failed))
}

func (m *Metrics) HTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestSeconds.WithLabelValues(method, route).Observe(seconds)
}
