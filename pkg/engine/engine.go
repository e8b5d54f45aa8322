// Package engine runs the adaptive anomaly pipeline: parse, count, adapt
// thresholds, classify, detect drift, learn, mine templates.
package engine

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/uuid"

	"github.com/strrl/logsentry/pkg/insight"
	"github.com/strrl/logsentry/pkg/learning"
	"github.com/strrl/logsentry/pkg/parser"
	"github.com/strrl/logsentry/pkg/pattern"
	"github.com/strrl/logsentry/pkg/stats"
	"github.com/strrl/logsentry/pkg/threshold"
)

// Recorder receives every finished Result. It is called inside the engine
// lock, so results arrive in call order. Record must not call back into
// the engine.
type Recorder interface {
	Record(Result)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source shared by the engine and its components.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger shared by the engine and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder registers r to observe results.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithPatternCapacity bounds pattern memory; see learning.WithPatternCapacity.
func WithPatternCapacity(n int) Option {
	return func(e *Engine) { e.patternCapacity = n }
}

// WithoutTemplates disables Drain template mining.
func WithoutTemplates() Option {
	return func(e *Engine) { e.templates = false }
}

// Engine owns every piece of adaptive state. All methods are safe for
// concurrent use; calls are serialized.
type Engine struct {
	mu        sync.Mutex
	optimizer *threshold.Optimizer
	learner   *learning.Learner
	miner     *pattern.Miner
	calls     int

	now             func() time.Time
	logger          *slog.Logger
	recorder        Recorder
	patternCapacity int
	templates       bool
}

// New creates an Engine with default thresholds and an empty baseline.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:       time.Now,
		logger:    slog.Default(),
		templates: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.optimizer = threshold.New(threshold.WithClock(e.now), threshold.WithLogger(e.logger))
	e.learner = e.newLearner()
	if e.templates {
		m, err := pattern.NewMiner()
		if err != nil {
			e.logger.Warn("template mining disabled", "err", err)
		}
		e.miner = m
	}
	return e
}

func (e *Engine) newLearner() *learning.Learner {
	return learning.New(
		learning.WithClock(e.now),
		learning.WithLogger(e.logger),
		learning.WithPatternCapacity(e.patternCapacity),
	)
}

// Analyze runs one pass over raw log bytes. fb, when non-nil, is folded
// into the learning-rate adaptation before classification.
func (e *Engine) Analyze(raw []byte, fb *threshold.Feedback) Result {
	cleaned, report := parser.Parse(raw)
	return e.run(cleaned, report, ContentHash(raw), fb)
}

// AnalyzeString is Analyze for text that is already decoded.
func (e *Engine) AnalyzeString(s string, fb *threshold.Feedback) Result {
	cleaned, report := parser.ParseString(s)
	return e.run(cleaned, report, ContentHash([]byte(s)), fb)
}

func (e *Engine) record(r Result) {
	if e.recorder != nil {
		e.recorder.Record(r)
	}
}

func (e *Engine) run(cleaned string, report parser.CorruptionReport, hash string, fb *threshold.Feedback) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := stats.Extract(cleaned)
	patterns := parser.ExtractPatterns(cleaned)

	state := e.optimizer.Optimize(s, fb)
	sev, confidence := e.optimizer.Classify(s)

	drifting, score := e.learner.DetectDrift(s)
	e.learner.UpdateBaseline(s)
	for _, kind := range learning.PatternKinds {
		for _, v := range uniqueValues(patterns, kind) {
			e.learner.LearnPattern(kind, v, kind.IsAnomalous())
		}
	}

	var templates []pattern.Template
	if e.miner != nil && cleaned != "" {
		var err error
		templates, err = e.miner.Feed(strings.Split(cleaned, "\n"))
		if err != nil {
			e.logger.Warn("template mining failed", "err", err)
			templates = nil
		}
	}

	e.calls++

	r := Result{
		ID:          uuid.New(),
		AnalyzedAt:  e.now(),
		ContentHash: hash,
		Stats:       s,
		Corruption:  report,
		Patterns:    patterns,
		Severity:    sev,
		Confidence:  confidence,
		Thresholds:  state,
		Drift:       Drift{IsDrifting: drifting, Score: score},
		Learning: Learning{
			BaselineEstablished:  e.learner.Established(),
			PatternMemorySize:    e.learner.MemorySize(),
			ThresholdAdjustments: len(e.optimizer.History()),
		},
		Deviations: insight.Deviations(s),
		Causes:     insight.AllCauses(s),
		Templates:  templates,
		CallCount:  e.calls,
	}

	e.logger.Debug("analysis complete",
		"call", e.calls,
		"lines", s.TotalLines,
		"severity", sev,
		"confidence", confidence,
		"drifting", drifting,
		"error_threshold", state.ErrorRate,
	)
	e.record(r)
	return r
}

// uniqueValues returns the values of kind in first-appearance order.
func uniqueValues(ps parser.PatternSet, kind learning.PatternKind) []string {
	var values []string
	switch kind {
	case learning.KindTimestamp:
		values = ps.Timestamps
	case learning.KindIPAddress:
		values = ps.IPAddresses
	case learning.KindErrorCode:
		values = ps.ErrorCodes
	case learning.KindSeverityLevel:
		values = ps.SeverityLevels
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// PatternConfidence reports the learner's confidence in a pattern.
func (e *Engine) PatternConfidence(kind learning.PatternKind, value string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learner.PatternConfidence(kind, value)
}

// Patterns lists learned patterns of kind, or all kinds when kind is empty.
func (e *Engine) Patterns(kind learning.PatternKind) []learning.PatternEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learner.Patterns(kind)
}

// Thresholds returns the current threshold state.
func (e *Engine) Thresholds() threshold.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.optimizer.State()
}

// CallCount returns the number of completed Analyze calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// StateVersion is written into every State and checked on Restore.
const StateVersion = 1

// State is the persisted form of an Engine. Mined templates are not part
// of it; template IDs are only stable within one process.
type State struct {
	Version   int                `json:"version"`
	SavedAt   time.Time          `json:"saved_at"`
	CallCount int                `json:"call_count"`
	Threshold threshold.Snapshot `json:"threshold"`
	Learning  learning.Snapshot  `json:"learning"`
}

// Snapshot captures the adaptive state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Version:   StateVersion,
		SavedAt:   e.now(),
		CallCount: e.calls,
		Threshold: e.optimizer.Snapshot(),
		Learning:  e.learner.Snapshot(),
	}
}

// Restore replaces the adaptive state with s.
func (e *Engine) Restore(s State) error {
	if s.Version != StateVersion {
		return errors.Errorf("unsupported state version %d", s.Version)
	}
	if s.CallCount < 0 {
		return errors.Errorf("invalid call count %d", s.CallCount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.optimizer.Restore(s.Threshold)
	e.learner.Restore(s.Learning)
	e.calls = s.CallCount
	return nil
}
