package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-errors/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/strrl/logsentry/pkg/config"
	"github.com/strrl/logsentry/pkg/tracing"
)

var (
	v       = config.NewViper()
	cfgFile string
	cfg     *config.Config
)

func main() {
	// Load .env file if present (does not override existing env vars)
	_ = godotenv.Load()

	flush := tracing.InitLangfuse()

	err := rootCmd().Execute()
	flush()

	if err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "logsentry",
		Short: "Adaptive log anomaly detection",
		Long: `logsentry scores raw, possibly corrupted logs for anomalies. Thresholds,
baselines and pattern confidence adapt with every analysis; pass --state to
carry what was learned across runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			level, err := c.SlogLevel()
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			cfg = c
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to a YAML config file (default ./logsentry.yaml)")
	pf.String("db", "logsentry.duckdb", "path to DuckDB database")
	pf.String("state-name", "default", "name of the saved engine state")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	mustBind(v, pf, "db", "state-name", "log-level")

	root.AddCommand(analyzeCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(patternsCmd())
	root.AddCommand(templatesCmd())
	root.AddCommand(stateCmd())
	return root
}

// mustBind binds each flag to the config key of the same name with dashes
// replaced by underscores.
func mustBind(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name)); err != nil {
			panic(errors.Errorf("bind flag %s: %w", name, err))
		}
	}
}
