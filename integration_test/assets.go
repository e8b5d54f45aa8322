package integration_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/store"
)

// loghubPath returns the LOGHUB_PATH env var or skips the test.
func loghubPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("LOGHUB_PATH")
	if p == "" {
		t.Skip("LOGHUB_PATH not set, skipping integration test")
	}
	return p
}

// newStore creates a fresh in-memory DuckDB store with cleanup registered.
func newStore(t *testing.T) *store.DuckDBStore {
	t.Helper()
	s, err := store.NewDuckDBStore("")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

// outputDir returns the directory for saving run reports.
// Set REPORT_OUTPUT_DIR to customize; defaults to a mktemp dir.
func outputDir(t *testing.T) string {
	t.Helper()
	dir := os.Getenv("REPORT_OUTPUT_DIR")
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "logsentry-integration-*")
		if err != nil {
			t.Fatalf("create temp dir: %v", err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create output dir: %v", err)
	}
	t.Logf("Report output dir: %s", dir)
	return dir
}

// report is the JSON structure saved per dataset and path.
type report struct {
	Dataset  string          `json:"dataset"`
	TestPath string          `json:"test_path"`
	Events   int             `json:"events,omitempty"`
	Results  []engine.Result `json:"results"`
}

func saveReport(t *testing.T, dir string, r report) {
	t.Helper()
	path := filepath.Join(dir, r.Dataset+"_"+r.TestPath+".json")
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	t.Logf("Saved %d results to %s", len(r.Results), path)
}
