package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/learning"
)

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the saved engine state",
	}
	cmd.AddCommand(stateShowCmd())
	cmd.AddCommand(stateResetCmd())
	return cmd
}

func stateShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved thresholds, baseline and learning counters",
		RunE: func(cmd *cobra.Command, args []string) error {
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
				fmt.Fprintf(os.Stderr, "No saved state named %q.\n", cfg.StateName)
				return nil
			}

			st := eng.Snapshot()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			th := st.Threshold.State
			fmt.Printf("State:              %s (version %d)\n", cfg.StateName, st.Version)
			fmt.Printf("Saved at:           %s\n", st.SavedAt.Local().Format(time.DateTime))
			fmt.Printf("Calls:              %d\n", st.CallCount)
			fmt.Printf("Error threshold:    %.4f\n", th.ErrorRate)
			fmt.Printf("Warning threshold:  %.4f\n", th.WarningRate)
			fmt.Printf("Learning rate:      %.3f\n", th.LearningRate)
			fmt.Printf("Adjustments:        %d\n", len(st.Threshold.History))
			fmt.Printf("Feedback samples:   %d\n", len(st.Threshold.Performance))
			fmt.Printf("Baseline:           %v\n", st.Learning.Established)
			for _, kind := range learning.PatternKinds {
				fmt.Printf("  %-16s  %d\n", kind, len(eng.Patterns(kind)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot")
	return cmd
}

func stateResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the saved engine state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.DeleteState(ctx, cfg.StateName); err != nil {
				return errors.Errorf("delete state %s: %w", cfg.StateName, err)
			}
			fmt.Fprintf(os.Stderr, "Deleted state %q.\n", cfg.StateName)
			return nil
		},
	}
}
