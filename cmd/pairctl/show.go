package main

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show a live pairing request",
	GroupID: "pairing",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showToken, _ := cmd.Flags().GetBool("show-token")

		req, err := service.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !showToken {
			req = redacted(req)
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), req)
		}
		printRequest(cmd.OutOrStdout(), req)
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("show-token", false, "include the current claim token")
}
