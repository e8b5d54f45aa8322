package main

import (
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/strrl/logsentry/pkg/querier"
)

func templatesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List log templates across stored analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplates(cmd, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 30, "maximum templates to list")
	return cmd
}

func runTemplates(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	q := querier.NewQuerier(s)
	summaries, err := q.Templates(ctx, limit)
	if err != nil {
		return errors.Errorf("query: %w", err)
	}

	fmt.Printf("%-8s %-8s %-20s %s\n", "HITS", "RUNS", "LAST_SEEN", "TEMPLATE")
	fmt.Println("-------- -------- -------------------- ----------------------------------------")
	for _, ts := range summaries {
		fmt.Printf("%-8d %-8d %-20s %s\n", ts.Hits, ts.Analyses, ts.LastSeen.Local().Format(time.DateTime), ts.Pattern)
	}
	return nil
}
