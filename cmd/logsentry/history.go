package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/strrl/logsentry/pkg/querier"
	"github.com/strrl/logsentry/pkg/severity"
	"github.com/strrl/logsentry/pkg/store"
)

func historyCmd() *cobra.Command {
	var (
		limit  int
		sev    string
		source string
		since  time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored analyses",
		Long: `List stored analyses, newest first, followed by a breakdown of all stored
analyses by severity.

Examples:
  logsentry history
  logsentry history --severity critical --since 24h
  logsentry history --json --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := store.QueryOpts{Source: source, Limit: limit}
			if sev != "" {
				s, err := severity.Parse(sev)
				if err != nil {
					return err
				}
				opts.Severity = s.String()
			}
			if since > 0 {
				opts.From = time.Now().Add(-since)
			}
			return runHistory(cmd, opts, asJSON)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum analyses to list")
	cmd.Flags().StringVar(&sev, "severity", "", "only list analyses with this severity")
	cmd.Flags().StringVar(&source, "source", "", "only list analyses of this source file")
	cmd.Flags().DurationVar(&since, "since", 0, "only list analyses newer than this")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full results as JSON")
	return cmd
}

func runHistory(cmd *cobra.Command, opts store.QueryOpts, asJSON bool) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	q := querier.NewQuerier(s)

	if asJSON {
		results, err := q.Results(ctx, opts)
		if err != nil {
			return errors.Errorf("query: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	analyses, err := q.Recent(ctx, opts)
	if err != nil {
		return errors.Errorf("query: %w", err)
	}

	fmt.Printf("%-20s %-9s %-6s %7s %6s %6s %-5s %s\n", "ANALYZED", "SEVERITY", "CONF", "LINES", "ERR", "WARN", "DRIFT", "SOURCE")
	fmt.Println("-------------------- --------- ------ ------- ------ ------ ----- ----------------")
	for _, a := range analyses {
		drift := "-"
		if a.IsDrifting {
			drift = fmt.Sprintf("%.2f", a.DriftScore)
		}
		fmt.Printf("%-20s %-9s %-6.2f %7d %6d %6d %-5s %s\n",
			a.AnalyzedAt.Local().Format(time.DateTime), a.Severity, a.Confidence,
			a.TotalLines, a.ErrorCount, a.WarningCount, drift, a.Source)
	}

	shares, err := q.SeverityBreakdown(ctx)
	if err != nil {
		return errors.Errorf("query: %w", err)
	}
	if len(shares) == 0 {
		fmt.Fprintln(os.Stderr, "No analyses stored yet.")
		return nil
	}
	fmt.Println()
	for _, sh := range shares {
		fmt.Printf("%-9s %5d  %5.1f%%\n", sh.Severity, sh.Count, sh.Percent)
	}
	return nil
}
