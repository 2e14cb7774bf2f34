package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cornersweep/internal/config"
	"cornersweep/internal/regression"
	"cornersweep/internal/simulator"
)

// initCmd writes a default configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

// planCmd lists work items without simulating
var planCmd = &cobra.Command{
	Use:   "plan [suite...]",
	Short: "List the work items a run would simulate",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := regression.New(cfg, nil, loggers).Plan(args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range plan {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", p.Suite, p.Family, p.Metric, p.Item, p.Deck)
		}
		fmt.Fprintf(out, "%d work items\n", len(plan))
		return nil
	},
}

// checkCmd verifies the simulator
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the simulator runs and reports the expected version",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := cfg.Simulator
		out, err := simulator.CheckVersion(cmd.Context(), newExecutor(), sc.Binary, sc.VersionArguments, sc.VersionMatch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sc.Binary, out)
		return nil
	},
}
