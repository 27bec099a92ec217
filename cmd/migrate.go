package main

import (
	"errors"

	"github.com/spf13/cobra"

	"ukwikibot/internal/infrastructure"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the usage and users tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(offline)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return errors.New("DATABASE_URL is not set")
		}

		pg, err := infrastructure.NewPostgresClient(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pg.Close()
		return pg.Migrate(cmd.Context())
	},
}
