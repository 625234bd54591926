package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/clock"
	"github.com/alfredjeanlab/pairing/internal/sweep"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the background expiry sweeper until interrupted",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL != "" {
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("events disabled (PAIRING_NATS_URL not set)")
		}

		var scheduler *sweep.Scheduler
		if cfg.SweepInterval > 0 {
			sc, err := sweepConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			sw := sweep.New(db, clock.Real(), sc, logger)
			scheduler = sweep.NewScheduler(sw, cfg.SweepInterval, logger)
			scheduler.Start()
			logger.Info("sweep scheduler started",
				"interval", cfg.SweepInterval,
				"audit_retention", cfg.AuditRetention)
		} else {
			logger.Info("sweep disabled (PAIRING_SWEEP_INTERVAL=0)")
		}

		logger.Info("pairing core started",
			"lease_duration", cfg.LeaseDuration,
			"default_ttl", cfg.DefaultTTL)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sweep scheduler stopped")
		}
		logger.Info("shutdown complete")
		return nil
	},
}
