package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/pairing"
)

var claimCmd = &cobra.Command{
	Use:     "claim <id> <claim-token>",
	Short:   "Finalize a leased request",
	GroupID: "pairing",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, _ := cmd.Flags().GetString("agent")
		instanceID, _ := cmd.Flags().GetString("instance")

		req, err := service.Claim(cmd.Context(), pairing.ClaimParams{
			ID:               args[0],
			ClaimToken:       args[1],
			AgentID:          agentID,
			ClientInstanceID: instanceID,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), redacted(req))
		}
		printRequest(cmd.OutOrStdout(), redacted(req))
		return nil
	},
}

func init() {
	claimCmd.Flags().String("agent", "", "claiming agent id (required)")
	claimCmd.Flags().String("instance", "", "client instance id of the agent process")
	_ = claimCmd.MarkFlagRequired("agent")
}
