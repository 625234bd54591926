package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/events"
	"github.com/alfredjeanlab/pairing/internal/model"
)

var watchCmd = &cobra.Command{
	Use:         "watch",
	Short:       "Stream pairing transitions from the event bus",
	GroupID:     "pairing",
	Annotations: map[string]string{skipStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		clientID, _ := cmd.Flags().GetString("client")
		kind, _ := cmd.Flags().GetString("event")
		if natsURL == "" {
			return fmt.Errorf("--nats-url or PAIRING_NATS_URL is required")
		}

		topic := events.TopicAll
		if kind != "" {
			k := model.EventKind(kind)
			if !k.IsValid() {
				return fmt.Errorf("unknown event kind %q", kind)
			}
			topic = events.TopicFor(k)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return err
		}
		defer cancel()

		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-ch:
				if !ok {
					return nil
				}
				ev, err := events.DecodeRequestEvent(data)
				if err != nil {
					logger.Warn("skipping malformed event", "err", err)
					continue
				}
				if clientID != "" && ev.ClientID != clientID {
					continue
				}
				if jsonOutput {
					if err := writeJSON(out, ev); err != nil {
						return err
					}
					continue
				}
				printEventLine(out, ev.Audit, ev.ClientID, ev.Status)
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("nats-url", os.Getenv("PAIRING_NATS_URL"), "NATS server URL")
	watchCmd.Flags().String("client", "", "only show transitions for this client id")
	watchCmd.Flags().String("event", "", "only show one event kind (request.init, request.polled, request.claimed)")
}
