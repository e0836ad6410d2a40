package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/clinic-auth-service/internal/config"
	"github.com/pribylovaa/clinic-auth-service/migrations"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			log := setupLogger(cfg.Env)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := migrations.Up(ctx, cfg.DB.DatabaseURL); err != nil {
				log.Error("migrations_failed", slog.String("err", err.Error()))
				return err
			}

			log.Info("migrations_applied")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "migration timeout")
	return cmd
}
