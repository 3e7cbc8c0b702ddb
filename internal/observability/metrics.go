package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJobName = "involuntary_dissolution"

// Metrics stores Prometheus collectors for a single job run. A short-lived
// process cannot be scraped, so the registry is pushed to a Pushgateway.
type Metrics struct {
	registry *prometheus.Registry

	batchesCreatedTotal       prometheus.Counter
	processingsCreatedTotal   prometheus.Counter
	batchesCompletedTotal     prometheus.Counter
	stageRunsTotal            *prometheus.CounterVec
	stageTransitionsTotal     *prometheus.CounterVec
	noticesPublishFailedTotal prometheus.Counter
	noticesRedeliveredTotal   prometheus.Counter
	runFailuresTotal          prometheus.Counter
	runDuration               prometheus.Gauge
	lastSuccess               prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		batchesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dissolution_engine",
			Name:      "batches_created_total",
			Help:      "Total number of involuntary dissolution batches created.",
		}),
		processingsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dissolution_engine",
			Name:      "batch_processings_created_total",
			Help:      "Total number of businesses added to a dissolution batch.",
		}),
		batchesCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dissolution_engine",
			Name:      "batches_completed_total",
			Help:      "Total number of batches marked completed.",
		}),
		stageRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dissolution_engine",
				Name:      "stage_runs_total",
				Help:      "Total number of stage executions grouped by stage.",
			},
			[]string{"stage"},
		),
		stageTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dissolution_engine",
				Name:      "stage_transitions_total",
				Help:      "Batch processing rows handled by a stage grouped by outcome.",
			},
			[]string{"stage", "outcome"},
		),
		noticesPublishFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dissolution_engine",
			Name:      "notices_publish_failed_total",
			Help:      "Total number of dissolution notices that could not be published.",
		}),
		noticesRedeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dissolution_engine",
			Name:      "notices_redelivered_total",
			Help:      "Total number of parked dissolution notices published by a later run.",
		}),
		runFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dissolution_engine",
			Name:      "run_failures_total",
			Help:      "Total number of job runs that ended with an error.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dissolution_engine",
			Name:      "run_duration_seconds",
			Help:      "Duration of the last job run in seconds.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dissolution_engine",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful job run.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.batchesCreatedTotal,
		m.processingsCreatedTotal,
		m.batchesCompletedTotal,
		m.stageRunsTotal,
		m.stageTransitionsTotal,
		m.noticesPublishFailedTotal,
		m.noticesRedeliveredTotal,
		m.runFailuresTotal,
		m.runDuration,
		m.lastSuccess,
	)

	return m
}

func (m *Metrics) IncBatchCreated(size int) {
	if m == nil {
		return
	}
	m.batchesCreatedTotal.Inc()
	m.processingsCreatedTotal.Add(float64(size))
}

func (m *Metrics) IncBatchCompleted() {
	if m == nil {
		return
	}
	m.batchesCompletedTotal.Inc()
}

func (m *Metrics) IncStageRun(stage string) {
	if m == nil {
		return
	}
	m.stageRunsTotal.WithLabelValues(normalizeLabel(stage)).Inc()
}

func (m *Metrics) IncStageTransition(stage string, outcome string) {
	if m == nil {
		return
	}
	m.stageTransitionsTotal.WithLabelValues(normalizeLabel(stage), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncNoticePublishFailed() {
	if m == nil {
		return
	}
	m.noticesPublishFailedTotal.Inc()
}

func (m *Metrics) IncNoticeRedelivered() {
	if m == nil {
		return
	}
	m.noticesRedeliveredTotal.Inc()
}

// ObserveRun records the outcome of a whole job run.
func (m *Metrics) ObserveRun(duration time.Duration, finishedAt time.Time, err error) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.runDuration.Set(seconds)
	if err != nil {
		m.runFailuresTotal.Inc()
		return
	}
	m.lastSuccess.Set(float64(finishedAt.Unix()))
}

// Push sends the registry to the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if m == nil || m.registry == nil {
		return nil
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("pushgateway url is required")
	}

	if err := push.New(url, pushJobName).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
