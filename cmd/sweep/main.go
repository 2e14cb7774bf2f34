package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cornersweep/internal/config"
	"cornersweep/internal/logging"
	"cornersweep/internal/simulator"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Set up by the root command before any subcommand runs
	cfg     *config.Config
	logger  *zap.Logger
	loggers *logging.Loggers
)

// errRegressionFailed makes --strict runs exit non-zero.
var errRegressionFailed = errors.New("regression failed")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sweep",
	Short: "PVT corner-sweep model validation",
	Long: `sweep validates compact device models against silicon measurements.

For every configured suite it renders one simulator deck per device and
process/voltage/temperature corner, runs the simulator in parallel, and
compares the results with the measured data: truth tables for digital
cells, RMS percentage error for analog device families.

A device passes when its worst corner is within the suite's threshold.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			logger = zap.NewNop()
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		loggers = logging.NewLoggers(logger, cfg.Logging)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd.Flags().IntVarP(&numCores, "num-cores", "j", 0, "Simulator processes in flight (default: run.workers)")
	runCmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any device fails")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newExecutor builds the simulator executor from the simulator section.
func newExecutor() simulator.Executor {
	sc := cfg.Simulator
	ec := simulator.DefaultExecutorConfig()
	ec.DefaultTimeout = cfg.GetSimulatorTimeout()
	if sc.MaxOutputBytes > 0 {
		ec.MaxOutputBytes = sc.MaxOutputBytes
	}
	if len(sc.AllowedEnvVars) > 0 {
		ec.AllowedEnvironment = sc.AllowedEnvVars
	}
	return simulator.NewDirectExecutor(ec, loggers.Get(logging.CategorySimulator))
}
