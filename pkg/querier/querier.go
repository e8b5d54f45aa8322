package querier

import (
	"context"

	"github.com/go-errors/errors"

	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/store"
)

// Querier answers read-side questions over stored analyses.
type Querier struct {
	store store.Store
}

// NewQuerier creates a new Querier backed by the given store.
func NewQuerier(s store.Store) *Querier {
	return &Querier{store: s}
}

// Recent returns stored analyses matching opts, newest first.
func (q *Querier) Recent(ctx context.Context, opts store.QueryOpts) ([]store.Analysis, error) {
	return q.store.Analyses(ctx, opts)
}

// Results is Recent with every row decoded back into an engine result.
func (q *Querier) Results(ctx context.Context, opts store.QueryOpts) ([]engine.Result, error) {
	rows, err := q.store.Analyses(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Result, 0, len(rows))
	for _, a := range rows {
		r, err := a.Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Share is one severity's part of the stored history.
type Share struct {
	Severity string
	Count    int
	Percent  float64
}

// SeverityBreakdown returns each severity's count and share of all analyses.
func (q *Querier) SeverityBreakdown(ctx context.Context) ([]Share, error) {
	counts, err := q.store.SeverityCounts(ctx)
	if err != nil {
		return nil, err
	}
	var total int
	for _, c := range counts {
		total += c.Count
	}
	out := make([]Share, 0, len(counts))
	for _, c := range counts {
		out = append(out, Share{
			Severity: c.Severity,
			Count:    c.Count,
			Percent:  float64(c.Count) / float64(max(total, 1)) * 100,
		})
	}
	return out, nil
}

// Summary describes a slice of history.
type Summary struct {
	Analyses       int
	Drifting       int
	Lines          int
	MeanConfidence float64
	Latest         *store.Analysis
}

// Summarize aggregates the analyses matching opts.
func (q *Querier) Summarize(ctx context.Context, opts store.QueryOpts) (Summary, error) {
	rows, err := q.store.Analyses(ctx, opts)
	if err != nil {
		return Summary{}, errors.Errorf("summarize: %w", err)
	}

	var s Summary
	var confidence float64
	for i, a := range rows {
		s.Analyses++
		s.Lines += a.TotalLines
		confidence += a.Confidence
		if a.IsDrifting {
			s.Drifting++
		}
		if i == 0 {
			latest := a
			s.Latest = &latest
		}
	}
	if s.Analyses > 0 {
		s.MeanConfidence = confidence / float64(s.Analyses)
	}
	return s, nil
}

// Templates returns the most hit templates across history.
func (q *Querier) Templates(ctx context.Context, limit int) ([]store.TemplateSummary, error) {
	return q.store.TemplateSummaries(ctx, limit)
}
