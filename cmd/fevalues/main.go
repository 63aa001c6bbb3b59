// Command fevalues resolves update flags for an element and mapping pair and
// evaluates the resulting geometric data over a structured grid.
package main

import (
	"fmt"
	"os"

	"github.com/notargets/fevalues/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fevalues",
	Short: "Finite element values on structured grids",
	Long: `fevalues resolves the quantities an element and a mapping need to
deliver a requested set of update flags, and evaluates them cell by cell.

The run is described by a YAML file (see "fevalues init").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the resolved update flags and store layout",
	RunE:  runResolve,
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Show how the grid is split over workers",
	RunE:  runLayout,
}

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Integrate over every cell, face or subface of the grid",
	Long: `Evaluates the configured context on every cell of the grid in parallel
and sums JxW. When quadrature points are resolved the first moments are
reported as well. Cells the mapping cannot handle are skipped and listed.`,
	RunE: runIntegrate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fevalues.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(initCmd, resolveCmd, layoutCmd, integrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds a production logger; console encoding unless the
// configuration asks for JSON.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	zc := zap.NewProductionConfig()
	if cfg.Logging.Format != "json" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if debug {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
