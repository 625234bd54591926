package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/pairing"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Open a pairing request for a client",
	GroupID: "pairing",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		clientID, _ := cmd.Flags().GetString("client")
		tabID, _ := cmd.Flags().GetString("tab")
		scope, _ := cmd.Flags().GetString("scope")
		ttl, _ := cmd.Flags().GetInt("ttl")

		req, err := service.Init(cmd.Context(), pairing.InitParams{
			UserID:     userID,
			ClientID:   clientID,
			TabID:      tabID,
			Scope:      scope,
			TTLSeconds: ttl,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), req)
		}
		printRequest(cmd.OutOrStdout(), req)
		return nil
	},
}

func init() {
	initCmd.Flags().String("user", "", "initiating user id (required)")
	initCmd.Flags().String("client", "", "client context being authorized (required)")
	initCmd.Flags().String("tab", "", "browser tab or sub-context id")
	initCmd.Flags().String("scope", "", "requested scope")
	initCmd.Flags().Int("ttl", 0, "lifetime in seconds (default from PAIRING_DEFAULT_TTL)")
	_ = initCmd.MarkFlagRequired("user")
	_ = initCmd.MarkFlagRequired("client")
}
