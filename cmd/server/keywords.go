package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"symptom-guide/internal/db"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Manage the emergency keywords stored in Postgres",
}

var keywordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and stored emergency keywords",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, kw := range cfg.EmergencyKeywords {
			fmt.Fprintf(out, "%s\t(config)\n", kw)
		}
		if cfg.DatabaseURL == "" {
			return nil
		}
		repo, closeFn, err := openRepo(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		stored, err := repo.ListEmergencyKeywords(cmd.Context())
		if err != nil {
			return err
		}
		for _, kw := range stored {
			fmt.Fprintf(out, "%s\t(database)\n", kw)
		}
		return nil
	},
}

var keywordsAddCmd = &cobra.Command{
	Use:   "add [keyword]",
	Short: "Store an additional emergency keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("keywords add needs DATABASE_URL")
		}
		repo, closeFn, err := openRepo(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		return repo.AddEmergencyKeyword(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	keywordsCmd.AddCommand(keywordsListCmd, keywordsAddCmd)
}

func openRepo(cmd *cobra.Command) (*db.Repository, func(), error) {
	conn, err := db.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(cmd.Context(), conn); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return db.NewRepository(conn), func() { _ = conn.Close() }, nil
}
