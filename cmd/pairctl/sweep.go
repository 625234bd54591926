package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/clock"
	"github.com/alfredjeanlab/pairing/internal/config"
	"github.com/alfredjeanlab/pairing/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:     "sweep",
	Short:   "Purge expired requests and prune audit events past retention",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := sweepConfig(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		sw := sweep.New(db, clock.Real(), sc, logger)

		res, err := sw.Once(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d requests, archived %d and deleted %d audit events\n",
			res.RequestsPurged, res.EventsArchived, res.EventsDeleted)
		return nil
	},
}

// sweepConfig builds the sweeper configuration. With retention enabled,
// every configured archive destination must be usable; a batch is deleted
// only after all of them accepted it.
func sweepConfig(ctx context.Context, c *config.Config) (sweep.Config, error) {
	sc := sweep.Config{Retention: c.AuditRetention}
	if c.AuditRetention <= 0 {
		return sc, nil
	}
	dests, err := archiveDestinations(ctx, c)
	if err != nil {
		return sc, err
	}
	sc.Destinations = dests
	return sc, nil
}

// archiveDestinations builds the configured audit archive targets.
func archiveDestinations(ctx context.Context, c *config.Config) ([]sweep.Destination, error) {
	var dests []sweep.Destination
	if c.ArchiveS3Bucket != "" {
		d, err := sweep.NewS3Destination(ctx, c.ArchiveS3Bucket, c.ArchiveS3Prefix, c.ArchiveS3Region, c.ArchiveS3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("S3 archive destination: %w", err)
		}
		dests = append(dests, d)
		logger.Info("S3 archive destination enabled", "bucket", c.ArchiveS3Bucket, "prefix", c.ArchiveS3Prefix)
	}
	if c.ArchiveGitRepo != "" {
		d, err := sweep.NewGitDestination(c.ArchiveGitRepo, c.ArchiveGitDir, c.ArchiveGitBranch)
		if err != nil {
			return nil, fmt.Errorf("git archive destination: %w", err)
		}
		dests = append(dests, d)
		logger.Info("git archive destination enabled", "repo", c.ArchiveGitRepo, "dir", c.ArchiveGitDir)
	}
	return dests, nil
}
