package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/config"
	"github.com/alfredjeanlab/pairing/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Apply or roll back schema migrations",
	GroupID:     "system",
	Annotations: map[string]string{skipStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")

		c, err := config.Load()
		if err != nil {
			return err
		}
		sqlDB, err := postgres.Open(c.DatabaseURL)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := postgres.Migrate(sqlDB, steps); err != nil {
			return err
		}
		if steps == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration step(s)\n", steps)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().Int("steps", 0, "migrate by N steps; negative rolls back (0 = all the way up)")
}
