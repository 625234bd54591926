package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/config"
	"github.com/alfredjeanlab/pairing/internal/events"
	"github.com/alfredjeanlab/pairing/internal/pairing"
	"github.com/alfredjeanlab/pairing/internal/store/postgres"
	"github.com/alfredjeanlab/pairing/internal/ui"
)

var (
	jsonOutput bool
	noColor    bool
	verbose    bool

	cfg       *config.Config
	db        *postgres.PostgresStore
	publisher events.Publisher
	service   *pairing.Service
	logger    *slog.Logger
)

// skipStore marks commands that open their own connections.
const skipStore = "skip-store"

var rootCmd = &cobra.Command{
	Use:           "pairctl <command>",
	Short:         "Operate the pairing authorization core",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		}
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		if cmd.Annotations[skipStore] == "true" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		db, err = postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		publisher, err = newPublisher(cfg.NATSURL)
		if err != nil {
			db.Close()
			return err
		}
		service = pairing.New(db, pairing.Options{
			DefaultTTL:           cfg.DefaultTTL,
			DefaultLeaseDuration: cfg.LeaseDuration,
			Publisher:            publisher,
			Logger:               logger,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if publisher != nil {
			publisher.Close()
		}
		if db != nil {
			db.Close()
		}
	},
}

func newPublisher(natsURL string) (events.Publisher, error) {
	if natsURL == "" {
		return &events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(natsURL)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddGroup(
		&cobra.Group{ID: "pairing", Title: "Pairing:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.SetHelpFunc(colorizedHelpFunc())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: ")+err.Error())
		os.Exit(1)
	}
}
