package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <pipe>",
	Short: "Report a pipe's build state and the staleness of its lineage.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		status, err := w.Status(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("pipe: %s\n", status.PipeName)
		fmt.Printf("built: %v\n", status.Built)
		if status.Built {
			fmt.Printf("last build time: %s\n", status.Metadata.LastBuildTime)
			fmt.Printf("time elapsed: %s\n", status.Metadata.TimeElapsed)
			if status.Metadata.GitCommitHash != "" {
				fmt.Printf("git commit hash: %s\n", status.Metadata.GitCommitHash)
			}
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\nlineage\tstale")
		for _, name := range status.Lineage {
			fmt.Fprintf(tw, "%s\t%v\n", name, status.Stale[name])
		}
		return tw.Flush()
	},
}
