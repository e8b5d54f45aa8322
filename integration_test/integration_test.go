package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/strrl/logsentry/integration_test/loghub"
	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/ingestor"
	"github.com/strrl/logsentry/pkg/querier"
	"github.com/strrl/logsentry/pkg/store"
)

func TestMain(m *testing.M) {
	// Load .env.test if present (does not override existing env vars)
	_ = godotenv.Load("../.env.test")
	os.Exit(m.Run())
}

var datasets = []string{
	"Apache",
	"BGL",
	"Hadoop",
	"HDFS",
	"HealthApp",
	"HPC",
	"Linux",
	"Mac",
	"OpenSSH",
	"OpenStack",
	"Proxifier",
	"Spark",
	"Thunderbird",
	"Zookeeper",
}

// TestAllDatasets_CSVPath analyzes each dataset's labelled content in one
// call and checks the template miner against the ground-truth event count.
func TestAllDatasets_CSVPath(t *testing.T) {
	basePath := loghubPath(t)
	outDir := outputDir(t)

	for _, name := range datasets {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ds, err := loghub.Load(name, filepath.Join(basePath, name, name+"_2k.log_structured_corrected.csv"))
			if err != nil {
				t.Fatalf("load dataset: %v", err)
			}
			if len(ds.Entries) == 0 {
				t.Fatal("expected at least 1 entry, got 0")
			}

			r := engine.New().AnalyzeString(ds.Text(), nil)
			saveReport(t, outDir, report{Dataset: name, TestPath: "csv", Events: ds.Events(), Results: []engine.Result{r}})

			if r.Stats.TotalLines == 0 || r.Stats.TotalLines > len(ds.Entries) {
				t.Fatalf("total_lines = %d for %d entries", r.Stats.TotalLines, len(ds.Entries))
			}
			if len(r.Templates) == 0 {
				t.Fatal("expected at least 1 template")
			}
			if len(r.Templates) >= len(ds.Entries) {
				t.Fatalf("expected fewer templates (%d) than entries (%d)", len(r.Templates), len(ds.Entries))
			}
			t.Logf("%d templates for %d ground-truth events, severity %s", len(r.Templates), ds.Events(), r.Severity)
		})
	}
}

// TestAllDatasets_IngestorPath streams each raw .log file through the batch
// ingestor into one engine, stores every result and checks the history.
func TestAllDatasets_IngestorPath(t *testing.T) {
	basePath := loghubPath(t)
	outDir := outputDir(t)

	for _, name := range datasets {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			ch, err := ingestor.Batches(ctx, filepath.Join(basePath, name, name+"_2k.log"), 250)
			if err != nil {
				t.Fatalf("ingest: %v", err)
			}

			eng := engine.New()
			s := newStore(t)

			var results []engine.Result
			for br := range ch {
				if br.Err != nil {
					t.Fatalf("ingest read error: %v", br.Err)
				}
				r := eng.Analyze(br.Value.Data, nil)
				a, hits, err := store.NewAnalysis(r, name)
				if err != nil {
					t.Fatalf("new analysis: %v", err)
				}
				if err := s.InsertAnalysis(ctx, a, hits); err != nil {
					t.Fatalf("insert analysis: %v", err)
				}
				results = append(results, r)
			}
			if len(results) == 0 {
				t.Fatal("expected at least 1 batch, got 0")
			}
			saveReport(t, outDir, report{Dataset: name, TestPath: "ingestor", Results: results})

			for i, r := range results {
				if r.CallCount != i+1 {
					t.Fatalf("result %d: call_count = %d", i, r.CallCount)
				}
			}
			if !results[len(results)-1].Learning.BaselineEstablished {
				t.Fatal("baseline not established after all batches")
			}

			q := querier.NewQuerier(s)
			sum, err := q.Summarize(ctx, store.QueryOpts{Source: name})
			if err != nil {
				t.Fatalf("summarize: %v", err)
			}
			if sum.Analyses != len(results) {
				t.Fatalf("stored %d analyses, expected %d", sum.Analyses, len(results))
			}
			templates, err := q.Templates(ctx, 0)
			if err != nil {
				t.Fatalf("templates: %v", err)
			}
			if len(templates) == 0 {
				t.Fatal("expected stored templates")
			}
			t.Logf("%d batches, %d drifting, %d templates", sum.Analyses, sum.Drifting, len(templates))
		})
	}
}
