package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/ingestor"
	"github.com/strrl/logsentry/pkg/insight"
	"github.com/strrl/logsentry/pkg/metrics"
	"github.com/strrl/logsentry/pkg/narrative"
	"github.com/strrl/logsentry/pkg/parser"
	"github.com/strrl/logsentry/pkg/store"
	"github.com/strrl/logsentry/pkg/threshold"
)

type analyzeOpts struct {
	precision float64
	recall    float64
	narrate   bool
	evidence  int
}

func analyzeCmd() *cobra.Command {
	var opts analyzeOpts

	cmd := &cobra.Command{
		Use:   "analyze <logfile|->",
		Short: "Score a log file for anomalies",
		Long: `Read a log file (or stdin with "-"), run it through the adaptive engine and
print each result as JSON on stdout. Results are stored in DuckDB.

Examples:
  logsentry analyze auth.log
  logsentry analyze --state --batch-lines 500 app.log
  logsentry analyze --precision 0.9 --recall 0.8 --state auth.log
  cat app.log | logsentry analyze --narrate --focus brute_force -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fb *threshold.Feedback
			if cmd.Flags().Changed("precision") || cmd.Flags().Changed("recall") {
				fb = &threshold.Feedback{Precision: opts.precision, Recall: opts.recall}
			}
			return runAnalyze(cmd.Context(), args[0], fb, opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.precision, "precision", threshold.DefaultFeedbackValue, "precision of the previous judgment, folded into learning-rate adaptation")
	f.Float64Var(&opts.recall, "recall", threshold.DefaultFeedbackValue, "recall of the previous judgment, folded into learning-rate adaptation")
	f.BoolVar(&opts.narrate, "narrate", false, "add an LLM narrative (requires OPENROUTER_API_KEY)")
	f.IntVar(&opts.evidence, "evidence", 12, "sample lines sent with --narrate")
	f.Bool("state", false, "restore engine state before and save it after the run")
	f.Int("batch-lines", 0, "analyze in timestamp-aligned batches of at least n lines (0 = whole input)")
	f.Int("pattern-capacity", 0, "bound pattern memory with LRU eviction (0 = unbounded)")
	f.String("pushgateway", "", "Prometheus Pushgateway URL to push run metrics to")
	f.String("job", "logsentry", "Pushgateway job name")
	f.String("model", "", "override LLM model for --narrate")
	f.String("focus", "anomaly", "narrative question: anomaly, auth_failure, brute_force, sessions, resources")
	mustBind(v, f, "state", "batch-lines", "pattern-capacity", "pushgateway", "job", "model", "focus")
	return cmd
}

// report is what analyze prints per result.
type report struct {
	engine.Result
	Source    string               `json:"source"`
	Narrative *narrative.Narrative `json:"narrative,omitempty"`
}

func runAnalyze(ctx context.Context, path string, fb *threshold.Feedback, opts analyzeOpts) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	focus, err := insight.ParseFocus(cfg.Focus)
	if err != nil {
		return err
	}

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	rec := metrics.NewRecorder()
	eng := engine.New(
		engine.WithPatternCapacity(cfg.PatternCapacity),
		engine.WithRecorder(rec),
	)

	if cfg.State {
		restored, err := loadState(ctx, s, eng)
		if err != nil {
			return err
		}
		slog.Info("engine state", "name", cfg.StateName, "restored", restored, "calls", eng.CallCount())
	}

	var narrator *narrative.Narrator
	if opts.narrate {
		narrator, err = narrative.New(ctx, narrative.Config{
			APIKey: os.Getenv("OPENROUTER_API_KEY"),
			Model:  cfg.Model,
		})
		if err != nil {
			return err
		}
	}

	source := path
	if path != "-" {
		source = filepath.Base(path)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	var analyzed int
	handle := func(data []byte) error {
		r := eng.Analyze(data, fb)
		// Feedback describes the previous judgment; apply it once per run.
		fb = nil
		analyzed++

		a, hits, err := store.NewAnalysis(r, source)
		if err != nil {
			return err
		}
		if err := s.InsertAnalysis(ctx, a, hits); err != nil {
			return errors.Errorf("store analysis: %w", err)
		}

		out := report{Result: r, Source: source}
		if narrator != nil {
			cleaned, _ := parser.Parse(data)
			evidence := narrative.SelectEvidence(strings.Split(cleaned, "\n"), r.Templates, opts.evidence)
			n, err := narrator.Narrate(ctx, r, focus, evidence)
			if err != nil {
				slog.Warn("narrative failed", "analysis", r.ID, "err", err)
			} else {
				out.Narrative = &n
			}
		}
		return enc.Encode(out)
	}

	if cfg.BatchLines > 0 {
		ch, err := ingestor.Batches(ctx, path, cfg.BatchLines)
		if err != nil {
			return errors.Errorf("ingest: %w", err)
		}
		for br := range ch {
			if br.Err != nil {
				return errors.Errorf("read log: %w", br.Err)
			}
			slog.Debug("batch", "index", br.Value.Index, "first_line", br.Value.FirstLine, "lines", br.Value.Lines)
			if br.Value.Truncated > 0 {
				slog.Warn("oversized lines truncated", "batch", br.Value.Index, "lines", br.Value.Truncated, "max_bytes", ingestor.MaxLineSize)
			}
			if err := handle(br.Value.Data); err != nil {
				return err
			}
		}
	} else {
		data, err := ingestor.ReadAll(ctx, path)
		if err != nil {
			return errors.Errorf("ingest: %w", err)
		}
		if err := handle(data); err != nil {
			return err
		}
	}

	if cfg.State {
		if err := saveState(ctx, s, eng); err != nil {
			return err
		}
	}

	if cfg.Pushgateway != "" {
		if err := rec.Push(ctx, cfg.Pushgateway, cfg.Job); err != nil {
			slog.Warn("metrics push failed", "url", cfg.Pushgateway, "err", err)
		}
	}

	th := eng.Thresholds()
	fmt.Fprintf(os.Stderr, "Analyzed %d chunk(s) from %s; error threshold %.4f, learning rate %.3f, %d total calls\n",
		analyzed, source, th.ErrorRate, th.LearningRate, eng.CallCount())
	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.DB)
	return nil
}
