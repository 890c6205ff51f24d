// Package metrics registers the process's prometheus instruments. It never
// starts an HTTP exposition server itself — wiring a scrape endpoint is an
// external-surface concern (spec Non-goals: "Metrics/logging transport").
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry groups every instrument the core increments. Callers that do
// want a /metrics endpoint register Registry.Gatherer with promhttp
// themselves; this package only owns instrument definitions.
type Registry struct {
	Gatherer *prometheus.Registry

	SyncRuns           prometheus.Counter
	SyncErrors         *prometheus.CounterVec
	RuleExecutions     *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	QueueDropped       prometheus.Counter
	WorkersBusy        prometheus.Gauge
	TriggerEvaluations *prometheus.CounterVec
}

// New constructs and registers every instrument against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		Gatherer: reg,
		SyncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "potauto",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Number of sync engine invocations.",
		}),
		SyncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "potauto",
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Sync errors by kind.",
		}, []string{"kind"}),
		RuleExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "potauto",
			Subsystem: "executor",
			Name:      "rule_executions_total",
			Help:      "Rule executions by family and outcome.",
		}, []string{"family", "outcome"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "potauto",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current number of items waiting in the execution queue.",
		}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "potauto",
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Items dropped because the queue was at capacity.",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "potauto",
			Subsystem: "queue",
			Name:      "workers_busy",
			Help:      "Number of worker goroutines currently executing a rule.",
		}),
		TriggerEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "potauto",
			Subsystem: "trigger",
			Name:      "evaluations_total",
			Help:      "Trigger evaluations by family and fired/not-fired.",
		}, []string{"family", "fired"}),
	}
	reg.MustRegister(
		r.SyncRuns, r.SyncErrors, r.RuleExecutions,
		r.QueueDepth, r.QueueDropped, r.WorkersBusy, r.TriggerEvaluations,
	)
	return r
}

// Noop returns a Registry backed by an isolated registry, safe to use in
// tests that don't care about metrics but still need non-nil instruments.
func Noop() *Registry { return New() }
