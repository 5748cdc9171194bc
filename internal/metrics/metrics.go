// Package metrics exposes Prometheus instrumentation for the redaction
// pipeline: job outcomes, model token spend, and candidate acceptance.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "redactor"

type Metrics struct {
	registry *prometheus.Registry

	jobsTotal  *prometheus.CounterVec
	activeJobs prometheus.Gauge

	tokensTotal  *prometheus.CounterVec
	spendTotal   prometheus.Counter
	retriesTotal prometheus.Counter

	candidatesFound    prometheus.Counter
	candidatesAccepted prometheus.Counter
	candidatesRejected prometheus.Counter
	redactionsApplied  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Redaction jobs by stage and outcome.",
		}, []string{"stage", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs currently being processed.",
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Language model tokens consumed.",
		}, []string{"kind"}),
		spendTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_spend_usd_total",
			Help:      "Cumulative language model spend in USD.",
		}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_retries_total",
			Help:      "Language model calls retried after a failure.",
		}),
		candidatesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_found_total",
			Help:      "Literal search hits collected for validation.",
		}),
		candidatesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_accepted_total",
			Help:      "Candidates that passed full-word validation.",
		}),
		candidatesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_rejected_total",
			Help:      "Candidates rejected as partial-word hits.",
		}),
		redactionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redactions_applied_total",
			Help:      "Provisional candidates burned into documents.",
		}),
	}

	m.registry.MustRegister(
		m.jobsTotal,
		m.activeJobs,
		m.tokensTotal,
		m.spendTotal,
		m.retriesTotal,
		m.candidatesFound,
		m.candidatesAccepted,
		m.candidatesRejected,
		m.redactionsApplied,
	)
	return m
}

func (m *Metrics) RecordJob(stage string, success bool) {
	status := "SUCCESS"
	if !success {
		status = "FAIL"
	}
	m.jobsTotal.WithLabelValues(stage, status).Inc()
}

func (m *Metrics) JobStarted()  { m.activeJobs.Inc() }
func (m *Metrics) JobFinished() { m.activeJobs.Dec() }

func (m *Metrics) RecordTokens(prompt, completion int64) {
	m.tokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensTotal.WithLabelValues("completion").Add(float64(completion))
}

func (m *Metrics) RecordSpend(usd float64) {
	if usd > 0 {
		m.spendTotal.Add(usd)
	}
}

func (m *Metrics) RecordRetry() { m.retriesTotal.Inc() }

func (m *Metrics) RecordCandidates(found, accepted int) {
	m.candidatesFound.Add(float64(found))
	m.candidatesAccepted.Add(float64(accepted))
	if rejected := found - accepted; rejected > 0 {
		m.candidatesRejected.Add(float64(rejected))
	}
}

func (m *Metrics) RecordRedactionsApplied(n int) {
	m.redactionsApplied.Add(float64(n))
}

// Registry exposes the underlying registry so callers can attach their own
// collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
