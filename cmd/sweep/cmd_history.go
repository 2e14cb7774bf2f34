package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cornersweep/internal/logging"
	"cornersweep/internal/report"
	"cornersweep/internal/store"
)

var historyLimit int

// historyCmd shows recorded verdicts
var historyCmd = &cobra.Command{
	Use:   "history [device]",
	Short: "Show recorded verdicts, newest run first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := ""
		if len(args) == 1 {
			device = args[0]
		}

		ledger, err := store.Open(cfg.Store.Path, loggers.Get(logging.CategoryStore))
		if err != nil {
			return err
		}
		defer ledger.Close()

		entries, err := ledger.History(cmd.Context(), device, historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintf(out, "No recorded runs in %s\n", ledger.Path())
			return nil
		}

		// one table per run, newest first
		for i := 0; i < len(entries); {
			j := i
			var verdicts []report.Verdict
			for ; j < len(entries) && entries[j].RunID == entries[i].RunID; j++ {
				verdicts = append(verdicts, entries[j].Verdict)
			}
			fmt.Fprintf(out, "%s  %s\n", entries[i].RunName, entries[i].StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprint(out, report.RenderTable(verdicts))
			i = j
		}
		return nil
	},
}
