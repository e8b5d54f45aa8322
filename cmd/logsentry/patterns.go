package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/learning"
)

func patternsCmd() *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List learned patterns and their confidence",
		Long: `List the patterns held in the saved engine state, most frequent first.

Examples:
  logsentry patterns
  logsentry patterns --kind error_codes --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			k := learning.PatternKind(kind)
			if kind != "" && !slices.Contains(learning.PatternKinds, k) {
				return errors.Errorf("unknown pattern kind %q (want one of %v)", kind, learning.PatternKinds)
			}
			return runPatterns(cmd, k, limit)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list patterns of this kind")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum patterns to list (0 = all)")
	return cmd
}

func runPatterns(cmd *cobra.Command, kind learning.PatternKind, limit int) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	eng := engine.New(engine.WithPatternCapacity(cfg.PatternCapacity))
	restored, err := loadState(ctx, s, eng)
	if err != nil {
		return err
	}
	if !restored {
		fmt.Fprintf(os.Stderr, "No saved state named %q. Run analyze --state first.\n", cfg.StateName)
		return nil
	}

	entries := eng.Patterns(kind)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	fmt.Printf("%-16s %-8s %-12s %-6s %-20s %s\n", "KIND", "COUNT", "ANOMALY_RATE", "CONF", "LAST_SEEN", "VALUE")
	fmt.Println("---------------- -------- ------------ ------ -------------------- ----------------")
	for _, p := range entries {
		fmt.Printf("%-16s %-8d %-12.3f %-6.2f %-20s %s\n",
			p.Kind, p.Count, p.AnomalyRate, p.Confidence, p.LastSeen.Local().Format(time.DateTime), p.Value)
	}
	return nil
}
