package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Switch to the most recently active session from a previous run.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		if err := w.Resume(); err != nil {
			return err
		}
		fmt.Printf("active session: %s\n", w.SessionID())
		return nil
	},
}
