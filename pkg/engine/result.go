package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/strrl/logsentry/pkg/insight"
	"github.com/strrl/logsentry/pkg/parser"
	"github.com/strrl/logsentry/pkg/pattern"
	"github.com/strrl/logsentry/pkg/severity"
	"github.com/strrl/logsentry/pkg/stats"
	"github.com/strrl/logsentry/pkg/threshold"
)

// Drift is the outcome of comparing a call's statistics with the baseline
// as it stood before the call.
type Drift struct {
	IsDrifting bool    `json:"is_drifting"`
	Score      float64 `json:"drift_score"`
}

// Learning describes how much the engine has learned so far.
type Learning struct {
	BaselineEstablished  bool `json:"baseline_established"`
	PatternMemorySize    int  `json:"pattern_memory_size"`
	ThresholdAdjustments int  `json:"threshold_adjustments"`
}

// Result is the outcome of one Analyze call.
type Result struct {
	ID          uuid.UUID `json:"id"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
	ContentHash string    `json:"content_hash"`

	Stats      stats.Statistics        `json:"stats"`
	Corruption parser.CorruptionReport `json:"corruption_report"`
	Patterns   parser.PatternSet       `json:"patterns"`

	Severity   severity.Severity `json:"severity"`
	Confidence float64           `json:"confidence"`
	Thresholds threshold.State   `json:"thresholds"`
	Drift      Drift             `json:"drift_analysis"`
	Learning   Learning          `json:"learning_metadata"`

	Deviations []insight.Deviation `json:"deviations"`
	Causes     []insight.Cause     `json:"causes"`
	Templates  []pattern.Template  `json:"templates"`

	CallCount int `json:"call_count"`
}

// ContentHash returns the hex SHA-256 of raw.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
