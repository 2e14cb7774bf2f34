package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cornersweep/internal/logging"
	"cornersweep/internal/regression"
	"cornersweep/internal/report"
	"cornersweep/internal/store"
)

var (
	numCores int
	strict   bool
)

// runCmd runs regression suites
var runCmd = &cobra.Command{
	Use:   "run [suite...]",
	Short: "Run regression suites (all suites when none are named)",
	Long: `Renders decks for every work item, simulates them in parallel and
reports a verdict per device and metric.

Artifacts are written under <run.output_dir>/<run name>/<suite>/, and a
verdicts.csv summary is written at the run directory root.

Examples:
  sweep run
  sweep run bjt -j 16 --strict`,
	RunE: runSuites,
}

func runSuites(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if numCores > 0 {
		cfg.Run.Workers = numCores
	}

	h := regression.New(cfg, newExecutor(), loggers)
	sum, err := h.Run(ctx, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.Report.ConsoleTable {
		fmt.Fprint(out, report.RenderTable(sum.Verdicts()))
	}
	for _, sr := range sum.Suites {
		for _, s := range sr.Skipped {
			fmt.Fprintf(out, "skipped %s/%s: %v\n", sr.Name, s.Device, s.Err)
		}
	}
	fmt.Fprintf(out, "Results in %s (%s)\n", sum.Dir, sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second))

	if cfg.Store.Enabled {
		if err := recordRun(ctx, sum); err != nil {
			logger.Warn("Run not recorded", zap.Error(err))
		}
	}

	if strict && !sum.Passed() {
		return errRegressionFailed
	}
	return nil
}

func recordRun(ctx context.Context, sum *regression.Summary) error {
	ledger, err := store.Open(cfg.Store.Path, loggers.Get(logging.CategoryStore))
	if err != nil {
		return err
	}
	defer ledger.Close()
	return ledger.Record(ctx, store.Run{
		ID:         store.NewRunID(),
		Name:       sum.Name,
		Dir:        sum.Dir,
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		Passed:     sum.Passed(),
		Verdicts:   sum.Verdicts(),
	})
}
