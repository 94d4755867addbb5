package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "Railyard discrete-step train simulator",
		Long: `Runs a discrete-step simulation of trains moving over a junction/track
network, steered by switch and signal arbitration so that no two trains
ever occupy the same track segment.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}
