package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List every session under the cache home directory.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		sessions, err := w.Sessions()
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(sessions))
		for id := range sessions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return sessions[ids[i]].Before(sessions[ids[j]]) })

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "session\tlast opened\tactive")
		for _, id := range ids {
			active := id == w.SessionID()
			fmt.Fprintf(tw, "%s\t%s\t%v\n", id, sessions[id], active)
		}
		return tw.Flush()
	},
}
