package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/railyard-simulator/core"
	"github.com/signalsfoundry/railyard-simulator/internal/logging"
)

// newValidateCmd creates the 'validate' command, a load-only pass over a
// scenario document that reports what it contains.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Check a scenario document without running it",
		Long: `Parses and cross-checks a scenario document: endpoint consistency,
dangling train and junction references, double-placed trains. Exits
nonzero on the first defect. A valid document also gets a full
simulation setup, so unroutable trains and isolated junctions are
reported too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()

	layout, summary, err := core.LoadScenario(f)
	if err != nil {
		return fmt.Errorf("scenario %q: %w", path, err)
	}
	if _, err := core.NewSimulation(cmd.Context(), layout, logging.Noop()); err != nil {
		return fmt.Errorf("scenario %q: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ok\n", path)
	fmt.Fprintf(out, "  junctions: %d\n", len(summary.JunctionIDs))
	fmt.Fprintf(out, "  tracks:    %d\n", len(summary.TrackIDs))
	fmt.Fprintf(out, "  trains:    %d\n", len(summary.TrainIDs))
	fmt.Fprintf(out, "  signals:   %d\n", len(summary.SignalIDs))

	arrived := 0
	for _, tr := range layout.Trains() {
		if tr.Arrived() {
			arrived++
		}
	}
	if arrived > 0 {
		fmt.Fprintf(out, "  already arrived: %d\n", arrived)
	}
	return nil
}
