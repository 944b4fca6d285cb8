package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"symptom-guide/internal/db"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print request IDs of emergency-flagged requests as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("watch needs DATABASE_URL")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids, err := db.Listen(ctx, cfg.DatabaseURL, cfg.NotifyChannel)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "listening on %s\n", cfg.NotifyChannel)
		for id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}
