package learning

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PatternKind is the category of a learned lexical pattern.
type PatternKind string

const (
	KindTimestamp     PatternKind = "timestamps"
	KindIPAddress     PatternKind = "ip_addresses"
	KindErrorCode     PatternKind = "error_codes"
	KindSeverityLevel PatternKind = "severity_levels"
)

// PatternKinds lists every kind in the order the engine learns them.
var PatternKinds = []PatternKind{KindTimestamp, KindIPAddress, KindErrorCode, KindSeverityLevel}

// IsAnomalous reports whether observations of this kind are flagged as
// anomalous. Only error codes are.
func (k PatternKind) IsAnomalous() bool {
	return k == KindErrorCode
}

// PatternStats is what the learner remembers about one pattern.
type PatternStats struct {
	Count       int       `json:"count"`
	AnomalyRate float64   `json:"anomaly_rate"`
	LastSeen    time.Time `json:"last_seen"`
}

// patternMemory stores PatternStats by "kind:value" key.
type patternMemory interface {
	Get(key string) (PatternStats, bool)
	Put(key string, ps PatternStats)
	Len() int
	Entries() map[string]PatternStats
}

// mapMemory never evicts.
type mapMemory map[string]PatternStats

func (m mapMemory) Get(key string) (PatternStats, bool) {
	ps, ok := m[key]
	return ps, ok
}

func (m mapMemory) Put(key string, ps PatternStats) { m[key] = ps }

func (m mapMemory) Len() int { return len(m) }

func (m mapMemory) Entries() map[string]PatternStats {
	out := make(map[string]PatternStats, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// lruMemory evicts the least recently observed pattern once full.
type lruMemory struct {
	cache *lru.Cache[string, PatternStats]
}

func newLRUMemory(capacity int) (*lruMemory, error) {
	c, err := lru.New[string, PatternStats](capacity)
	if err != nil {
		return nil, err
	}
	return &lruMemory{cache: c}, nil
}

func (m *lruMemory) Get(key string) (PatternStats, bool) { return m.cache.Peek(key) }

func (m *lruMemory) Put(key string, ps PatternStats) { m.cache.Add(key, ps) }

func (m *lruMemory) Len() int { return m.cache.Len() }

func (m *lruMemory) Entries() map[string]PatternStats {
	out := make(map[string]PatternStats, m.cache.Len())
	for _, k := range m.cache.Keys() {
		if v, ok := m.cache.Peek(k); ok {
			out[k] = v
		}
	}
	return out
}
