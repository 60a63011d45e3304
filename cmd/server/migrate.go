package main

import (
	"errors"

	"github.com/Harshitk-cp/cognicore/internal/config"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dbURL := config.DatabaseURL()
			if dbURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			return store.Migrate(dbURL, logger)
		},
	}
}
