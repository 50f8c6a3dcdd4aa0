package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"ozzus/pm-tracker/internal/repository"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadApp(cmd)
			if err != nil {
				return err
			}
			db, err := repository.OpenWithMigrations(cfg.Database.DSN, log)
			if err != nil {
				return err
			}
			defer db.Close()
			log.Info("database is up to date", slog.String("dsn", cfg.Database.DSN))
			return nil
		},
	}
}
