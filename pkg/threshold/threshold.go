package threshold

import (
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/strrl/logsentry/pkg/ring"
	"github.com/strrl/logsentry/pkg/severity"
	"github.com/strrl/logsentry/pkg/stats"
)

const (
	MinErrorThreshold = 0.01
	MaxErrorThreshold = 0.20
	MinLearningRate   = 0.05
	MaxLearningRate   = 0.25

	HistorySize         = 100
	FeedbackHistorySize = 50

	// DefaultFeedbackValue replaces a missing or out-of-range precision/recall.
	DefaultFeedbackValue = 0.8

	varianceWindow   = 10
	stableVariance   = 0.01
	unstableVariance = 0.05
)

// State is the adjustable detection configuration. Only ErrorRate and
// LearningRate move; the other fields are static configuration.
type State struct {
	ErrorRate       float64                       `json:"error_rate"`
	WarningRate     float64                       `json:"warning_rate"`
	AnomalyScore    float64                       `json:"anomaly_score"`
	ConfidenceMin   float64                       `json:"confidence_min"`
	SeverityWeights map[severity.Severity]float64 `json:"severity_weights"`
	LearningRate    float64                       `json:"learning_rate"`
}

// DefaultState returns the thresholds an engine starts with.
func DefaultState() State {
	return State{
		ErrorRate:     0.05,
		WarningRate:   0.10,
		AnomalyScore:  0.75,
		ConfidenceMin: 0.60,
		SeverityWeights: map[severity.Severity]float64{
			severity.Critical: 1.0,
			severity.High:     0.75,
			severity.Medium:   0.50,
			severity.Low:      0.25,
		},
		LearningRate: 0.1,
	}
}

func (s State) clone() State {
	s.SeverityWeights = maps.Clone(s.SeverityWeights)
	return s
}

// Adjustment records one Optimize call, whether or not the threshold moved.
type Adjustment struct {
	At                  time.Time `json:"at"`
	ErrorThreshold      float64   `json:"error_threshold"`
	WarningThreshold    float64   `json:"warning_threshold"`
	ErrorRateObserved   float64   `json:"error_rate_observed"`
	WarningRateObserved float64   `json:"warning_rate_observed"`
}

// Feedback is externally supplied detection quality for the last analysis.
type Feedback struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Performance is one accepted feedback sample.
type Performance struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// WithLogger sets the logger used for adjustment events.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// WithLearningRate overrides the initial learning rate, clamped to its bounds.
func WithLearningRate(lr float64) Option {
	return func(o *Optimizer) { o.state.LearningRate = clamp(lr, MinLearningRate, MaxLearningRate) }
}

// Optimizer adapts the error-rate threshold to observed rates and scores
// severity against the current thresholds. It is not safe for concurrent
// use; the engine serializes access.
type Optimizer struct {
	state       State
	history     *ring.Buffer[Adjustment]
	performance *ring.Buffer[Performance]
	now         func() time.Time
	logger      *slog.Logger
}

// New creates an Optimizer with DefaultState.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		state:       DefaultState(),
		history:     ring.New[Adjustment](HistorySize),
		performance: ring.New[Performance](FeedbackHistorySize),
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize applies the ratchet rule to the error threshold and, when fb is
// non-nil, folds the feedback into the learning rate. It returns a copy of
// the resulting state.
//
// The threshold only moves when the observed error rate leaves the
// [0.5x, 2x] band around it.
func (o *Optimizer) Optimize(s stats.Statistics, fb *Feedback) State {
	errorRate := s.Rate(stats.ErrorCount)
	warningRate := s.Rate(stats.WarningCount)

	prev := o.state.ErrorRate
	switch {
	case errorRate > prev*2:
		o.state.ErrorRate = math.Min(prev*(1+o.state.LearningRate), MaxErrorThreshold)
	case errorRate < prev*0.5:
		o.state.ErrorRate = math.Max(prev*(1-o.state.LearningRate), MinErrorThreshold)
	}
	if o.state.ErrorRate != prev {
		o.logger.Debug("error threshold adjusted",
			"from", prev, "to", o.state.ErrorRate, "observed", errorRate)
	}

	o.history.Push(Adjustment{
		At:                  o.now(),
		ErrorThreshold:      o.state.ErrorRate,
		WarningThreshold:    o.state.WarningRate,
		ErrorRateObserved:   errorRate,
		WarningRateObserved: warningRate,
	})

	if fb != nil {
		o.UpdateFromFeedback(*fb)
	}
	return o.state.clone()
}

// Classify scores s against the current thresholds and maps the score onto
// a severity and a confidence in [0, 1].
func (o *Optimizer) Classify(s stats.Statistics) (severity.Severity, float64) {
	score := o.Score(s)

	var (
		level      severity.Severity
		confidence float64
	)
	switch {
	case score > 3.0:
		level, confidence = severity.Critical, math.Min(score*0.3, 1.0)
	case score > 2.0:
		level, confidence = severity.High, math.Min(score*0.25, 0.95)
	case score > 1.0:
		level, confidence = severity.Medium, math.Min(score*0.20, 0.85)
	default:
		level, confidence = severity.Low, score*0.15
	}
	return level, clamp(confidence, 0, 1)
}

// Score is the weighted ratio of observed error and warning rates to their thresholds.
func (o *Optimizer) Score(s stats.Statistics) float64 {
	errorThreshold := o.state.ErrorRate
	if errorThreshold <= 0 {
		errorThreshold = MinErrorThreshold
	}
	warningThreshold := o.state.WarningRate
	if warningThreshold <= 0 {
		warningThreshold = DefaultState().WarningRate
	}
	return 0.6*(s.Rate(stats.ErrorCount)/errorThreshold) +
		0.4*(s.Rate(stats.WarningCount)/warningThreshold)
}

// UpdateFromFeedback records a precision/recall sample and tunes the
// learning rate from the variance of the most recent F1 scores: stable
// performance shrinks it, unstable performance grows it.
func (o *Optimizer) UpdateFromFeedback(fb Feedback) {
	p := sanitizeFeedback(fb.Precision)
	r := sanitizeFeedback(fb.Recall)
	if p != fb.Precision || r != fb.Recall {
		o.logger.Debug("feedback defaulted", "precision", fb.Precision, "recall", fb.Recall)
	}

	var f1 float64
	if p+r > 0 {
		f1 = 2 * p * r / (p + r)
	}
	o.performance.Push(Performance{Precision: p, Recall: r, F1: f1})

	if o.performance.Len() < varianceWindow {
		return
	}
	recent := o.performance.Last(varianceWindow)
	scores := make([]float64, len(recent))
	for i, perf := range recent {
		scores[i] = perf.F1
	}

	v := variance(scores)
	prev := o.state.LearningRate
	switch {
	case v < stableVariance:
		o.state.LearningRate = math.Max(MinLearningRate, prev*0.95)
	case v > unstableVariance:
		o.state.LearningRate = math.Min(MaxLearningRate, prev*1.1)
	}
	if o.state.LearningRate != prev {
		o.logger.Debug("learning rate adjusted", "from", prev, "to", o.state.LearningRate, "f1_variance", v)
	}
}

// State returns a copy of the current thresholds.
func (o *Optimizer) State() State { return o.state.clone() }

// History returns the retained adjustments, oldest first.
func (o *Optimizer) History() []Adjustment { return o.history.Slice() }

// Performance returns the retained feedback samples, oldest first.
func (o *Optimizer) Performance() []Performance { return o.performance.Slice() }

// Snapshot is the serializable form of an Optimizer.
type Snapshot struct {
	State       State         `json:"state"`
	History     []Adjustment  `json:"history"`
	Performance []Performance `json:"performance"`
}

// Snapshot captures the optimizer for persistence.
func (o *Optimizer) Snapshot() Snapshot {
	return Snapshot{
		State:       o.State(),
		History:     o.History(),
		Performance: o.Performance(),
	}
}

// Restore replaces the optimizer state with snap. Values outside their
// bounds are clamped and missing static fields fall back to defaults.
func (o *Optimizer) Restore(snap Snapshot) {
	def := DefaultState()
	st := snap.State.clone()
	st.ErrorRate = clamp(orDefault(st.ErrorRate, def.ErrorRate), MinErrorThreshold, MaxErrorThreshold)
	st.LearningRate = clamp(orDefault(st.LearningRate, def.LearningRate), MinLearningRate, MaxLearningRate)
	st.WarningRate = orDefault(st.WarningRate, def.WarningRate)
	st.AnomalyScore = orDefault(st.AnomalyScore, def.AnomalyScore)
	st.ConfidenceMin = orDefault(st.ConfidenceMin, def.ConfidenceMin)
	if len(st.SeverityWeights) == 0 {
		st.SeverityWeights = def.SeverityWeights
	}
	o.state = st

	o.history = ring.New[Adjustment](HistorySize)
	for _, a := range snap.History {
		o.history.Push(a)
	}
	o.performance = ring.New[Performance](FeedbackHistorySize)
	for _, p := range snap.Performance {
		o.performance.Push(p)
	}
}

func sanitizeFeedback(v float64) float64 {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return DefaultFeedbackValue
	}
	return v
}

// variance is the population variance of xs.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

func orDefault(v, def float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return def
	}
	return v
}
