package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/pairing"
	"github.com/alfredjeanlab/pairing/internal/ui"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Lease the oldest pending request of a client",
	Long: `Lease the oldest pending request of a client.

The leased request is printed with its claim token. Pass the token to
"pairctl claim" before the lease runs out. When nothing is eligible the
command prints nothing (or null with --json) and exits 0.`,
	GroupID: "pairing",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, _ := cmd.Flags().GetString("client")
		agentID, _ := cmd.Flags().GetString("agent")
		instanceID, _ := cmd.Flags().GetString("instance")
		leaseDuration, _ := cmd.Flags().GetDuration("lease")

		req, err := service.Poll(cmd.Context(), pairing.PollParams{
			ClientID:         clientID,
			AgentID:          agentID,
			ClientInstanceID: instanceID,
			LeaseDuration:    leaseDuration,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, req)
		}
		if req == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderMuted("no request available"))
			return nil
		}
		printRequest(out, req)
		return nil
	},
}

func init() {
	pollCmd.Flags().String("client", "", "client id to poll (required)")
	pollCmd.Flags().String("agent", "", "polling agent id (required)")
	pollCmd.Flags().String("instance", "", "client instance id of the agent process")
	pollCmd.Flags().Duration("lease", 0, "lease duration (default from PAIRING_LEASE_DURATION)")
	_ = pollCmd.MarkFlagRequired("client")
	_ = pollCmd.MarkFlagRequired("agent")
}
