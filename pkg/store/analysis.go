package store

import (
	"encoding/json"

	"github.com/go-errors/errors"

	"github.com/strrl/logsentry/pkg/engine"
)

// NewAnalysis flattens an engine result into its stored form.
func NewAnalysis(r engine.Result, source string) (Analysis, []TemplateHit, error) {
	doc, err := json.Marshal(r)
	if err != nil {
		return Analysis{}, nil, errors.Errorf("marshal result: %w", err)
	}

	a := Analysis{
		ID:             r.ID.String(),
		AnalyzedAt:     r.AnalyzedAt,
		Source:         source,
		ContentHash:    r.ContentHash,
		Severity:       r.Severity.String(),
		Confidence:     r.Confidence,
		TotalLines:     r.Stats.TotalLines,
		ErrorCount:     r.Stats.ErrorCount,
		WarningCount:   r.Stats.WarningCount,
		IsDrifting:     r.Drift.IsDrifting,
		DriftScore:     r.Drift.Score,
		ErrorThreshold: r.Thresholds.ErrorRate,
		CallCount:      r.CallCount,
		Result:         string(doc),
	}

	hits := make([]TemplateHit, 0, len(r.Templates))
	for _, t := range r.Templates {
		hits = append(hits, TemplateHit{
			AnalysisID: a.ID,
			TemplateID: t.ID.String(),
			Pattern:    t.Pattern,
			Hits:       t.Hits,
		})
	}
	return a, hits, nil
}

// Decode parses the stored result document.
func (a Analysis) Decode() (engine.Result, error) {
	var r engine.Result
	if err := json.Unmarshal([]byte(a.Result), &r); err != nil {
		return engine.Result{}, errors.Errorf("decode result %s: %w", a.ID, err)
	}
	return r, nil
}
