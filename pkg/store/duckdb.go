package store

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-errors/errors"

	"github.com/strrl/logsentry/pkg/severity"
)

var _ Store = (*DuckDBStore)(nil)

// DuckDBStore implements Store using DuckDB.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed store.
// Pass dsn="" for in-memory, or a file path for persistent storage.
func NewDuckDBStore(dsn string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, errors.Errorf("open duckdb: %w", err)
	}
	return &DuckDBStore{db: db}, nil
}

var schema = []struct {
	name string
	ddl  string
}{
	{"analyses", `
		CREATE TABLE IF NOT EXISTS analyses (
			id VARCHAR PRIMARY KEY,
			analyzed_at TIMESTAMP,
			source VARCHAR,
			content_hash VARCHAR,
			severity VARCHAR,
			confidence DOUBLE,
			total_lines INTEGER,
			error_count INTEGER,
			warning_count INTEGER,
			is_drifting BOOLEAN,
			drift_score DOUBLE,
			error_threshold DOUBLE,
			call_count INTEGER,
			result VARCHAR
		)`},
	{"analysis_templates", `
		CREATE TABLE IF NOT EXISTS analysis_templates (
			analysis_id VARCHAR,
			template_id VARCHAR,
			pattern VARCHAR,
			hits INTEGER
		)`},
	{"engine_state", `
		CREATE TABLE IF NOT EXISTS engine_state (
			name VARCHAR PRIMARY KEY,
			saved_at TIMESTAMP,
			data VARCHAR
		)`},
}

// Init creates the analyses, analysis_templates and engine_state tables
// if they do not exist.
func (s *DuckDBStore) Init(ctx context.Context) error {
	for _, t := range schema {
		if _, err := s.db.ExecContext(ctx, t.ddl); err != nil {
			return errors.Errorf("create %s table: %w", t.name, err)
		}
	}
	return nil
}

// InsertAnalysis stores an analysis and its template hits in one transaction.
func (s *DuckDBStore) InsertAnalysis(ctx context.Context, a Analysis, hits []TemplateHit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, analyzed_at, source, content_hash, severity, confidence,
		                       total_lines, error_count, warning_count, is_drifting, drift_score,
		                       error_threshold, call_count, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AnalyzedAt, a.Source, a.ContentHash, a.Severity, a.Confidence,
		a.TotalLines, a.ErrorCount, a.WarningCount, a.IsDrifting, a.DriftScore,
		a.ErrorThreshold, a.CallCount, a.Result,
	)
	if err != nil {
		return errors.Errorf("insert analysis: %w", err)
	}

	if len(hits) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO analysis_templates (analysis_id, template_id, pattern, hits)
			 VALUES (?, ?, ?, ?)`,
		)
		if err != nil {
			return errors.Errorf("prepare: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, h := range hits {
			if _, err := stmt.ExecContext(ctx, h.AnalysisID, h.TemplateID, h.Pattern, h.Hits); err != nil {
				return errors.Errorf("insert template hit: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Errorf("commit: %w", err)
	}
	return nil
}

const analysisColumns = `id, analyzed_at, source, content_hash, severity, confidence,
	total_lines, error_count, warning_count, is_drifting, drift_score,
	error_threshold, call_count, result`

// Analyses returns analyses matching opts, newest first.
func (s *DuckDBStore) Analyses(ctx context.Context, opts QueryOpts) ([]Analysis, error) {
	var conditions []string
	var args []any

	if opts.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, opts.Severity)
	}
	if opts.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, opts.Source)
	}
	if !opts.From.IsZero() {
		conditions = append(conditions, "analyzed_at >= ?")
		args = append(args, opts.From)
	}
	if !opts.To.IsZero() {
		conditions = append(conditions, "analyzed_at <= ?")
		args = append(args, opts.To)
	}

	query := "SELECT " + analysisColumns + " FROM analyses"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY analyzed_at DESC, call_count DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Errorf("query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAnalyses(rows)
}

// AnalysisByID returns one analysis or sql.ErrNoRows wrapped.
func (s *DuckDBStore) AnalysisByID(ctx context.Context, id string) (Analysis, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+analysisColumns+" FROM analyses WHERE id = ?", id)
	if err != nil {
		return Analysis{}, errors.Errorf("query analysis: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out, err := scanAnalyses(rows)
	if err != nil {
		return Analysis{}, err
	}
	if len(out) == 0 {
		return Analysis{}, errors.Errorf("analysis %s: %w", id, sql.ErrNoRows)
	}
	return out[0], nil
}

// SeverityCounts returns analyses per severity, lowest severity first.
func (s *DuckDBStore) SeverityCounts(ctx context.Context) ([]SeverityCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM analyses GROUP BY severity`,
	)
	if err != nil {
		return nil, errors.Errorf("severity counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []SeverityCount
	for rows.Next() {
		var c SeverityCount
		if err := rows.Scan(&c.Severity, &c.Count); err != nil {
			return nil, errors.Errorf("scan: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("rows err: %w", err)
	}

	slices.SortFunc(counts, func(a, b SeverityCount) int {
		return cmp.Compare(severityRank(a.Severity), severityRank(b.Severity))
	})
	return counts, nil
}

func severityRank(name string) int {
	s, err := severity.Parse(name)
	if err != nil {
		return len(severity.All)
	}
	return int(s)
}

// TemplateSummaries aggregates template hits by pattern text, most hit
// first. Template IDs are per-process, so patterns are the grouping key.
func (s *DuckDBStore) TemplateSummaries(ctx context.Context, limit int) ([]TemplateSummary, error) {
	query := `SELECT t.pattern, CAST(SUM(t.hits) AS BIGINT) AS total, COUNT(DISTINCT t.analysis_id), MAX(a.analyzed_at)
		 FROM analysis_templates t
		 JOIN analyses a ON a.id = t.analysis_id
		 GROUP BY t.pattern
		 ORDER BY total DESC, t.pattern`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Errorf("template summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TemplateSummary
	for rows.Next() {
		var ts TemplateSummary
		var total int64
		if err := rows.Scan(&ts.Pattern, &total, &ts.Analyses, &ts.LastSeen); err != nil {
			return nil, errors.Errorf("scan summary: %w", err)
		}
		ts.Hits = int(total)
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("rows err: %w", err)
	}
	return out, nil
}

// SaveState upserts a named snapshot.
func (s *DuckDBStore) SaveState(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO engine_state (name, saved_at, data) VALUES (?, ?, ?)`,
		name, time.Now().UTC(), string(data),
	)
	if err != nil {
		return errors.Errorf("save state %s: %w", name, err)
	}
	return nil
}

// LoadState returns the snapshot saved under name.
func (s *DuckDBStore) LoadState(ctx context.Context, name string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM engine_state WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, errors.Errorf("load state %s: %w", name, err)
	}
	return []byte(data), nil
}

// DeleteState removes the snapshot saved under name.
func (s *DuckDBStore) DeleteState(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM engine_state WHERE name = ?`, name); err != nil {
		return errors.Errorf("delete state %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

func scanAnalyses(rows *sql.Rows) ([]Analysis, error) {
	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(
			&a.ID, &a.AnalyzedAt, &a.Source, &a.ContentHash, &a.Severity, &a.Confidence,
			&a.TotalLines, &a.ErrorCount, &a.WarningCount, &a.IsDrifting, &a.DriftScore,
			&a.ErrorThreshold, &a.CallCount, &a.Result,
		); err != nil {
			return nil, errors.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("rows err: %w", err)
	}
	return out, nil
}
