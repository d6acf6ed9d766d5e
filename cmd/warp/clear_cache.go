package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCacheAll bool

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache [session-id]",
	Short: "Delete a session's cache, or every session with --all.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		if clearCacheAll {
			if err := w.ClearAll(); err != nil {
				return err
			}
			fmt.Println("cleared every session")
			return nil
		}
		target := w.SessionID()
		if len(args) == 1 {
			target = args[0]
		}
		if err := w.ClearSession(target); err != nil {
			return err
		}
		fmt.Printf("cleared session %s\n", target)
		return nil
	},
}

func init() {
	clearCacheCmd.Flags().BoolVar(&clearCacheAll, "all", false, "clear every session, including static products")
}
