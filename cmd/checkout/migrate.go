package main

import (
	"fmt"

	"github.com/Ugender2729/F1-Mart-sub001/internal/repository"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema migrations",
		Long: `Apply the orders, order_verifications and outbox_events migrations.

Examples:
  checkout migrate
  CHECKOUT_POSTGRES_HOST=db checkout migrate --config checkout.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			creds := postgresCredentials(cfg)
			repo, err := repository.NewRepository(creds)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s/%s\n", cfg.Postgres.Host, cfg.Postgres.DBName)
			return nil
		},
	}
}
