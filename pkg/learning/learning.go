package learning

import (
	"cmp"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/strrl/logsentry/pkg/ring"
	"github.com/strrl/logsentry/pkg/stats"
)

const (
	// Alpha is the EMA weight of the newest observation.
	Alpha = 0.3
	// DriftThreshold is the average relative change that counts as drift.
	DriftThreshold = 0.5

	AdaptationHistorySize = 100
	DriftWindowSize       = 1000

	// neutralConfidence is returned for patterns never observed.
	neutralConfidence = 0.5
	// saturationCount is the observation count at which frequency confidence reaches 1.
	saturationCount = 100
)

// Observation is one entry of the recency-bounded drift window.
type Observation struct {
	Pattern   string    `json:"pattern"`
	At        time.Time `json:"at"`
	IsAnomaly bool      `json:"is_anomaly"`
}

// BaselineSnapshot is a deep copy of the baseline taken after an update.
type BaselineSnapshot struct {
	At     time.Time             `json:"at"`
	Values map[stats.Key]float64 `json:"values"`
}

// PatternEntry is a learned pattern together with its current confidence.
type PatternEntry struct {
	Kind        PatternKind `json:"kind"`
	Value       string      `json:"value"`
	Count       int         `json:"count"`
	AnomalyRate float64     `json:"anomaly_rate"`
	LastSeen    time.Time   `json:"last_seen"`
	Confidence  float64     `json:"confidence"`
}

// Option configures a Learner.
type Option func(*Learner)

// WithClock overrides the time source for last-seen and history stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Learner) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Learner) { l.logger = logger }
}

// WithPatternCapacity bounds pattern memory to n entries with LRU eviction.
// n <= 0 keeps memory unbounded, which is the default.
func WithPatternCapacity(n int) Option {
	return func(l *Learner) { l.capacity = n }
}

// Learner keeps a smoothed baseline of statistics, detects drift from it and
// remembers how often each pattern was seen and how often it was anomalous.
// It is not safe for concurrent use; the engine serializes access.
type Learner struct {
	baseline    map[stats.Key]float64
	established bool
	adaptations *ring.Buffer[BaselineSnapshot]
	memory      patternMemory
	window      *ring.Buffer[Observation]
	capacity    int
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a Learner with an unestablished baseline.
func New(opts ...Option) *Learner {
	l := &Learner{
		baseline:    make(map[stats.Key]float64),
		adaptations: ring.New[BaselineSnapshot](AdaptationHistorySize),
		window:      ring.New[Observation](DriftWindowSize),
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.memory = l.newMemory()
	return l
}

func (l *Learner) newMemory() patternMemory {
	if l.capacity <= 0 {
		return mapMemory{}
	}
	m, err := newLRUMemory(l.capacity)
	if err != nil {
		l.logger.Warn("bounded pattern memory unavailable, using unbounded", "capacity", l.capacity, "err", err)
		return mapMemory{}
	}
	return m
}

// UpdateBaseline folds s into the baseline: unseen keys are seeded with the
// raw value, known keys move by EMA. The baseline is established from the
// first call on.
func (l *Learner) UpdateBaseline(s stats.Statistics) {
	for _, k := range stats.Keys {
		v := float64(s.Get(k))
		if old, ok := l.baseline[k]; ok {
			l.baseline[k] = Alpha*v + (1-Alpha)*old
		} else {
			l.baseline[k] = v
		}
	}
	l.established = true
	l.adaptations.Push(BaselineSnapshot{At: l.now(), Values: maps.Clone(l.baseline)})
}

// DetectDrift compares s with the baseline. The score is the mean relative
// difference over every counter except total lines whose baseline is
// positive; drift is a score above DriftThreshold.
func (l *Learner) DetectDrift(s stats.Statistics) (bool, float64) {
	if !l.established {
		return false, 0
	}

	var sum float64
	var compared int
	for _, k := range stats.Keys {
		if k == stats.TotalLines {
			continue
		}
		base, ok := l.baseline[k]
		if !ok || base <= 0 {
			continue
		}
		sum += math.Abs(float64(s.Get(k))-base) / base
		compared++
	}

	score := sum / float64(max(compared, 1))
	return score > DriftThreshold, score
}

// LearnPattern records one observation of value. Anomalous observations
// pull the anomaly rate toward 1 as a running mean; other observations only
// dilute it through the growing count.
func (l *Learner) LearnPattern(kind PatternKind, value string, isAnomaly bool) {
	key := patternKey(kind, value)
	now := l.now()

	ps, _ := l.memory.Get(key)
	ps.Count++
	ps.LastSeen = now
	if isAnomaly {
		ps.AnomalyRate = (ps.AnomalyRate*float64(ps.Count-1) + 1.0) / float64(ps.Count)
	}
	l.memory.Put(key, ps)

	l.window.Push(Observation{Pattern: key, At: now, IsAnomaly: isAnomaly})
}

// PatternConfidence is 0.5 for unseen patterns, otherwise the frequency
// confidence min(count/100, 1) scaled by how rarely the pattern was anomalous.
func (l *Learner) PatternConfidence(kind PatternKind, value string) float64 {
	ps, ok := l.memory.Get(patternKey(kind, value))
	if !ok {
		return neutralConfidence
	}
	return confidence(ps)
}

// Pattern returns what is known about one pattern.
func (l *Learner) Pattern(kind PatternKind, value string) (PatternStats, bool) {
	return l.memory.Get(patternKey(kind, value))
}

// Patterns lists learned patterns, most observed first. An empty kind
// lists every kind.
func (l *Learner) Patterns(kind PatternKind) []PatternEntry {
	var out []PatternEntry
	for key, ps := range l.memory.Entries() {
		k, v := splitPatternKey(key)
		if kind != "" && k != kind {
			continue
		}
		out = append(out, PatternEntry{
			Kind:        k,
			Value:       v,
			Count:       ps.Count,
			AnomalyRate: ps.AnomalyRate,
			LastSeen:    ps.LastSeen,
			Confidence:  confidence(ps),
		})
	}
	slices.SortFunc(out, func(a, b PatternEntry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}

// Established reports whether the baseline has been updated at least once.
func (l *Learner) Established() bool { return l.established }

// Baseline returns a copy of the smoothed baseline.
func (l *Learner) Baseline() map[stats.Key]float64 { return maps.Clone(l.baseline) }

// Adaptations returns the retained baseline snapshots, oldest first.
func (l *Learner) Adaptations() []BaselineSnapshot { return l.adaptations.Slice() }

// Window returns the drift window, oldest first.
func (l *Learner) Window() []Observation { return l.window.Slice() }

// MemorySize returns the number of remembered patterns.
func (l *Learner) MemorySize() int { return l.memory.Len() }

// Snapshot is the serializable form of a Learner.
type Snapshot struct {
	Baseline    map[stats.Key]float64   `json:"baseline"`
	Established bool                    `json:"established"`
	Adaptations []BaselineSnapshot      `json:"adaptations"`
	Patterns    map[string]PatternStats `json:"patterns"`
	Window      []Observation           `json:"window"`
}

// Snapshot captures the learner for persistence.
func (l *Learner) Snapshot() Snapshot {
	return Snapshot{
		Baseline:    l.Baseline(),
		Established: l.established,
		Adaptations: l.Adaptations(),
		Patterns:    l.memory.Entries(),
		Window:      l.Window(),
	}
}

// Restore replaces the learner state with snap. A snapshot with a non-empty
// baseline is always treated as established.
func (l *Learner) Restore(snap Snapshot) {
	l.baseline = maps.Clone(snap.Baseline)
	if l.baseline == nil {
		l.baseline = make(map[stats.Key]float64)
	}
	l.established = snap.Established || len(l.baseline) > 0

	l.adaptations = ring.New[BaselineSnapshot](AdaptationHistorySize)
	for _, a := range snap.Adaptations {
		l.adaptations.Push(a)
	}

	l.memory = l.newMemory()
	for k, v := range snap.Patterns {
		l.memory.Put(k, v)
	}

	l.window = ring.New[Observation](DriftWindowSize)
	for _, o := range snap.Window {
		l.window.Push(o)
	}
}

func confidence(ps PatternStats) float64 {
	freq := math.Min(float64(ps.Count)/saturationCount, 1.0)
	return freq * (1 - ps.AnomalyRate)
}

func patternKey(kind PatternKind, value string) string {
	return string(kind) + ":" + value
}

func splitPatternKey(key string) (PatternKind, string) {
	kind, value, _ := strings.Cut(key, ":")
	return PatternKind(kind), value
}
