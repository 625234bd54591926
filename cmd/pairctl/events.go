package main

import (
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:     "events <id>",
	Short:   "List the audit trail of a request",
	Long:    "List the audit trail of a request, oldest first. Works after the request has expired.",
	GroupID: "pairing",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evs, err := service.Events(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), evs)
		}
		printEvents(cmd.OutOrStdout(), evs)
		return nil
	},
}
