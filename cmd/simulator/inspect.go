package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/railyard-simulator/core"
	"github.com/signalsfoundry/railyard-simulator/internal/recorder"
)

// newInspectCmd creates the 'inspect' command for reading trace databases
// written by 'run --trace-db'.
func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <trace-db>",
		Short: "List recorded runs in a trace database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0])
		},
	}

	cmd.Flags().String("run", "", "Show detail for one run id")
	cmd.Flags().Int64("train", -1, "With --run, print the track path of this train")

	return cmd
}

func runInspect(cmd *cobra.Command, path string) error {
	rec, err := recorder.Open(path)
	if err != nil {
		return err
	}
	defer rec.Close()

	runID, _ := cmd.Flags().GetString("run")
	train, _ := cmd.Flags().GetInt64("train")
	out := cmd.OutOrStdout()

	if runID != "" && train >= 0 {
		tracks, err := rec.TrainPath(cmd.Context(), runID, core.Ident(train))
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			fmt.Fprintf(out, "train %s: no recorded moves in run %s\n", core.Ident(train), runID)
			return nil
		}
		fmt.Fprintf(out, "train %s visited %d tracks:\n", core.Ident(train), len(tracks))
		for step, id := range tracks {
			fmt.Fprintf(out, "  %3d  %s\n", step+1, id)
		}
		return nil
	}

	runs, err := rec.Runs(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no recorded runs")
		return nil
	}
	for _, ri := range runs {
		status := "finished " + ri.FinishedAt
		if ri.FinishedAt == "" {
			status = "unfinished"
		}
		fmt.Fprintf(out, "%s\n  scenario: %s\n  started:  %s (%s)\n  steps: %d  moves: %d\n",
			ri.ID, ri.Scenario, ri.StartedAt, status, ri.Steps, ri.Moves)
	}
	return nil
}
