package store

import (
	"context"
	"time"

	"github.com/go-errors/errors"
)

// ErrStateNotFound is returned by LoadState when no snapshot is saved
// under the requested name.
var ErrStateNotFound = errors.New("state not found")

// Analysis is one stored engine result. Result holds the full JSON
// document; the other fields are indexed copies for filtering.
type Analysis struct {
	ID             string
	AnalyzedAt     time.Time
	Source         string
	ContentHash    string
	Severity       string
	Confidence     float64
	TotalLines     int
	ErrorCount     int
	WarningCount   int
	IsDrifting     bool
	DriftScore     float64
	ErrorThreshold float64
	CallCount      int
	Result         string
}

// TemplateHit is the number of lines one analysis contributed to a template.
type TemplateHit struct {
	AnalysisID string
	TemplateID string
	Pattern    string
	Hits       int
}

// TemplateSummary aggregates template hits across analyses.
type TemplateSummary struct {
	Pattern  string
	Hits     int
	Analyses int
	LastSeen time.Time
}

// SeverityCount is the number of stored analyses with one severity.
type SeverityCount struct {
	Severity string
	Count    int
}

// QueryOpts specifies filters for querying analyses.
type QueryOpts struct {
	Severity string
	Source   string
	From     time.Time
	To       time.Time
	Limit    int
}

// Store persists analysis history and engine state snapshots.
type Store interface {
	// Init creates tables if they don't exist.
	Init(ctx context.Context) error
	// InsertAnalysis stores one analysis and its template hits.
	InsertAnalysis(ctx context.Context, a Analysis, hits []TemplateHit) error
	// Analyses returns analyses matching opts, newest first.
	Analyses(ctx context.Context, opts QueryOpts) ([]Analysis, error)
	// AnalysisByID returns one analysis.
	AnalysisByID(ctx context.Context, id string) (Analysis, error)
	// SeverityCounts returns the number of analyses per severity.
	SeverityCounts(ctx context.Context) ([]SeverityCount, error)
	// TemplateSummaries returns templates ordered by total hits.
	TemplateSummaries(ctx context.Context, limit int) ([]TemplateSummary, error)
	// SaveState upserts a named state snapshot.
	SaveState(ctx context.Context, name string, data []byte) error
	// LoadState returns a named snapshot or ErrStateNotFound.
	LoadState(ctx context.Context, name string) ([]byte, error)
	// DeleteState removes a named snapshot. Deleting a missing name is not an error.
	DeleteState(ctx context.Context, name string) error
	// Close releases resources.
	Close() error
}
