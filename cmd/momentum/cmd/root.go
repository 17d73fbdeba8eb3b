package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/momentum/config"
	"github.com/rustyeddy/momentum/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Multi-factor equity ranking and weekly portfolio backtester",
	Long: `Momentum ranks a universe of equities by a multi-factor composite score
and simulates a weekly-rebalanced, risk-managed portfolio against history.

It provides tools for:
  - Backtesting a strategy week by week with stops, swaps and costs
  - Scoring the universe on a single date
  - ATR risk-parity position sizing
  - Scheduled rankings with Prometheus metrics
  - Querying the run journal`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgPath   string
	envFile   string
	logLevel  string
	logFormat string

	// Loaded by setup before any command runs.
	cfg    *config.Config
	logger = zerolog.Nop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with MOMENTUM_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console or json)")
}

func setup(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromFile(cfgPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	cfg.ApplyEnv(os.Getenv)
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err = logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format), cmd.ErrOrStderr())
	return err
}
