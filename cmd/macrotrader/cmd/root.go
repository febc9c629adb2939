package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "macrotrader",
	Short: "A macro-regime-aware trade-approval and replay engine",
	Long: `Macrotrader replays historical price bars through a layered
trade-approval pipeline: macro regime classification, fundamental,
sentiment, intermarket and technical gates, then position sizing,
exposure caps and a drawdown kill switch. Every run produces an
auditable equity curve, trade log and performance report.

Commands:
  replay      run a backtest over a CSV bar file
  report      derive a performance report from a journal database
  paper       drive the paper broker from a feed with Prometheus metrics
  strategies  list the available strategies`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env can carry journal paths and the metrics listen address.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML/JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
