package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check every product once and write the updated list",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTracker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer t.Close()
		return t.runOnce(cmd.Context())
	},
}
