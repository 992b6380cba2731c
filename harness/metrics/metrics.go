// Package metrics exposes batch lifecycle counters for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
)

const namespace = "neonbench"

// Metrics owns the harness collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	submitted          *prometheus.CounterVec
	submissionFailed   *prometheus.CounterVec
	confirmed          *prometheus.CounterVec
	validationFailed   *prometheus.CounterVec
	blockhashRefreshes *prometheus.CounterVec
	phaseDuration      *prometheus.HistogramVec
	phaseFailures      *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "transactions_submitted_total",
			Help:      "Transactions accepted by the ledger RPC.",
		}, []string{"phase"}),
		submissionFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "submission_failures_total",
			Help:      "Transactions the ledger RPC rejected.",
		}, []string{"phase"}),
		confirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "transactions_confirmed_total",
			Help:      "Transactions confirmed with a log that passed validation.",
		}, []string{"phase"}),
		validationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "validation_failures_total",
			Help:      "Confirmed transactions whose log failed to fetch, decode or validate.",
		}, []string{"phase"}),
		blockhashRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "blockhash_refreshes_total",
			Help:      "Recent blockhash fetches triggered by staleness.",
		}, []string{"phase"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "phase",
			Name:      "duration_seconds",
			Help:      "Wall time of a harness phase.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"phase"}),
		phaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "phase",
			Name:      "failures_total",
			Help:      "Harness phases that ended with an error.",
		}, []string{"phase"}),
	}

	m.registry.MustRegister(
		m.submitted,
		m.submissionFailed,
		m.confirmed,
		m.validationFailed,
		m.blockhashRefreshes,
		m.phaseDuration,
		m.phaseFailures,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePhase records the duration and outcome of one phase run.
func (m *Metrics) ObservePhase(phase string, elapsed time.Duration, err error) {
	m.phaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
	if err != nil {
		m.phaseFailures.WithLabelValues(phase).Inc()
	}
}

// Observer returns an svm.Observer that counts events under phase.
func (m *Metrics) Observer(phase string) svm.Observer {
	return &phaseObserver{
		submitted:          m.submitted.WithLabelValues(phase),
		submissionFailed:   m.submissionFailed.WithLabelValues(phase),
		confirmed:          m.confirmed.WithLabelValues(phase),
		validationFailed:   m.validationFailed.WithLabelValues(phase),
		blockhashRefreshes: m.blockhashRefreshes.WithLabelValues(phase),
	}
}

type phaseObserver struct {
	submitted          prometheus.Counter
	submissionFailed   prometheus.Counter
	confirmed          prometheus.Counter
	validationFailed   prometheus.Counter
	blockhashRefreshes prometheus.Counter
}

func (o *phaseObserver) BlockhashRefreshed()   { o.blockhashRefreshes.Inc() }
func (o *phaseObserver) TransactionSubmitted() { o.submitted.Inc() }
func (o *phaseObserver) SubmissionFailed()     { o.submissionFailed.Inc() }
func (o *phaseObserver) TransactionConfirmed() { o.confirmed.Inc() }
func (o *phaseObserver) ValidationFailed()     { o.validationFailed.Inc() }
