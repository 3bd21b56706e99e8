package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/askpdf/server/internal/db"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the pgvector schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	migrateCmd.Flags().IntVarP(&migrateSteps, "steps", "n", 0, "number of migrations to apply (0 = all)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	dsn := cfg.VectorStore.Postgres.ConnectionString
	if dsn == "" {
		return errors.New("vector_store.postgres.connection_string is not set")
	}

	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	if err := db.Migrate(dsn, direction, migrateSteps); err != nil {
		return err
	}
	logger.Info("migrations completed", "direction", direction, "steps", migrateSteps)
	cmd.Println("Migrations completed successfully")
	return nil
}
