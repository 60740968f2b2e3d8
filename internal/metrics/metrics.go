// Package metrics exposes pipeline counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orrn/labelrelay/internal/core"
)

const (
	MetricEventsTotal          = "labelrelay_events_total"
	MetricEventDurationSeconds = "labelrelay_event_duration_seconds"
	MetricStageFailuresTotal   = "labelrelay_stage_failures_total"
	MetricLabelsNormalized     = "labelrelay_labels_normalized_total"
	MetricPrintJobsTotal       = "labelrelay_print_jobs_total"
)

// Metrics records pipeline observations on its own registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	labelsNormalize *prometheus.CounterVec
	printJobs       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEventsTotal,
			Help: "Webhook events handled, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricEventDurationSeconds,
			Help:    "Time spent handling one webhook event.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"event_type"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStageFailuresTotal,
			Help: "Pipeline stage failures, by stage and error kind.",
		}, []string{"stage", "kind"}),
		labelsNormalize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLabelsNormalized,
			Help: "Labels passed through the normalizer, by source format and whether they were converted.",
		}, []string{"format", "converted"}),
		printJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrintJobsTotal,
			Help: "Print job submissions, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.eventsTotal,
		m.eventDuration,
		m.stageFailures,
		m.labelsNormalize,
		m.printJobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) EventHandled(eventType, outcome string, elapsed time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *Metrics) StageFailed(stage core.State, kind core.ErrorKind) {
	m.stageFailures.WithLabelValues(string(stage), string(kind)).Inc()
}

func (m *Metrics) LabelNormalized(from string, converted bool) {
	m.labelsNormalize.WithLabelValues(from, strconv.FormatBool(converted)).Inc()
}

func (m *Metrics) JobDispatched(success bool) {
	result := "failed"
	if success {
		result = "submitted"
	}
	m.printJobs.WithLabelValues(result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ core.Recorder = (*Metrics)(nil)
