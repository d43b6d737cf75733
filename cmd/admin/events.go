package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dom/skillswap/internal/config"
	"github.com/dom/skillswap/internal/events"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print settlement events from the broker until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		enc := json.NewEncoder(cmd.OutOrStdout())
		return events.Consume(ctx, c.AMQPURL, c.EventsQueue, func(event events.SettlementCompleted) error {
			return enc.Encode(event)
		})
	},
}
