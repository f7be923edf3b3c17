package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagedata/metakeep/config"
	"github.com/vantagedata/metakeep/db"
	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/logger"
)

// MigrateCmd applies pending schema migrations.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer database.Close()

	if err := db.Migrate(database, logger.Logger); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	fmt.Printf("Database ready: %s\n", cfg.Database.Path)
	return nil
}
