package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billingsync/pkg/logger"
)

func (c *cli) replayCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a stored provider event without signature verification",
		Long: `Replay reads a raw Stripe event (as exported from the dashboard or
the events API) and applies it through the reconciler. The subscription is
re-fetched from Stripe, so replaying a stale or duplicate event is safe.

Use "-" to read the event from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errMissingEventFile
			}
			payload, err := readEvent(cmd, file)
			if err != nil {
				return err
			}

			return c.withApp(cmd.Context(), func(a *app) error {
				evt, err := a.parser.ParseEvent(payload)
				if err != nil {
					return err
				}
				outcome, err := a.reconciler.Handle(cmd.Context(), evt)
				if err != nil {
					return err
				}
				c.log.InfoContext(cmd.Context(), "event replayed",
					logger.Component("billingd"),
					logger.EventID(evt.ID),
					logger.EventType(string(evt.Type)),
				)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", evt.ID, evt.Type, outcome)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the event JSON file")
	return cmd
}

func readEvent(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	payload, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	return payload, nil
}
