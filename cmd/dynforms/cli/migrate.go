package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dynforms/internal/platform/postgres"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to DYNFORMS_DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, logCloser, err := setup()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, cancel := background(cmd)
			defer cancel()

			db, err := openDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("DYNFORMS_DATABASE_URL is required for migrate")
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				log.Info("schema up to date")
				return nil
			}
			for _, name := range applied {
				log.Info("applied migration", "name", name)
			}
			return nil
		},
	}
}
