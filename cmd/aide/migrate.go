package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/admmpy/aide/internal/config"
	"github.com/admmpy/aide/pkg/database"
	"github.com/admmpy/aide/pkg/database/migrate"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back all migrations")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := database.Open(cmd.Context(), database.Config{URL: cfg.Database.URL})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if migrateDown {
		return migrate.Down(db)
	}
	if err := migrate.Run(db); err != nil {
		return err
	}

	version, dirty, err := migrate.Version(db)
	if err != nil {
		return err
	}
	fmt.Printf("migration version %d (dirty=%v)\n", version, dirty)
	return nil
}
