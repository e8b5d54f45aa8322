// Package metrics exports engine outcomes as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/strrl/logsentry/pkg/engine"
)

const namespace = "logsentry"

// Recorder implements engine.Recorder on its own registry so several
// engines in one process (and tests) never collide.
type Recorder struct {
	reg *prometheus.Registry

	analyses       *prometheus.CounterVec
	lines          *prometheus.CounterVec
	driftDetected  prometheus.Counter
	driftScore     prometheus.Gauge
	confidence     prometheus.Histogram
	errorThreshold prometheus.Gauge
	learningRate   prometheus.Gauge
	patternMemory  prometheus.Gauge
}

var _ engine.Recorder = (*Recorder)(nil)

// NewRecorder registers the engine metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by assigned severity.",
		}, []string{"severity"}),
		lines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Input lines by parser outcome.",
		}, []string{"class"}),
		driftDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_detected_total",
			Help:      "Analyses whose statistics drifted from the baseline.",
		}),
		driftScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drift_score",
			Help:      "Drift score of the latest analysis.",
		}),
		confidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence",
			Help:      "Classification confidence.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		errorThreshold: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "error_rate_threshold",
			Help:      "Current adaptive error-rate threshold.",
		}),
		learningRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "learning_rate",
			Help:      "Current threshold learning rate.",
		}),
		patternMemory: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pattern_memory_size",
			Help:      "Patterns held in memory.",
		}),
	}
}

// Record updates every metric from r.
func (m *Recorder) Record(r engine.Result) {
	m.analyses.WithLabelValues(r.Severity.String()).Inc()

	c := r.Corruption
	m.lines.WithLabelValues("kept").Add(float64(c.KeptLines()))
	m.lines.WithLabelValues("empty").Add(float64(c.EmptyLines))
	m.lines.WithLabelValues("corrupted").Add(float64(c.CorruptedLines))
	m.lines.WithLabelValues("truncated").Add(float64(c.TruncatedLines))
	m.lines.WithLabelValues("encoding_suspect").Add(float64(c.EncodingSuspectLines))
	m.lines.WithLabelValues("recovered").Add(float64(c.RecoveredLines))

	if r.Drift.IsDrifting {
		m.driftDetected.Inc()
	}
	m.driftScore.Set(r.Drift.Score)
	m.confidence.Observe(r.Confidence)
	m.errorThreshold.Set(r.Thresholds.ErrorRate)
	m.learningRate.Set(r.Thresholds.LearningRate)
	m.patternMemory.Set(float64(r.Learning.PatternMemorySize))
}

// Registry exposes the registry for scraping or inspection.
func (m *Recorder) Registry() *prometheus.Registry { return m.reg }

// Push sends every metric to a Pushgateway, replacing the job's group.
func (m *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return errors.New("pushgateway url not set")
	}
	if err := push.New(url, job).Gatherer(m.reg).PushContext(ctx); err != nil {
		return errors.Errorf("push metrics: %w", err)
	}
	return nil
}
