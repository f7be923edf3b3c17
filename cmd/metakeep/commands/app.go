// Package commands implements the metakeep CLI subcommands.
package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/vantagedata/metakeep/chain"
	"github.com/vantagedata/metakeep/config"
	"github.com/vantagedata/metakeep/db"
	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/logger"
	"github.com/vantagedata/metakeep/meta"
	"github.com/vantagedata/metakeep/refdata"
	"github.com/vantagedata/metakeep/uow"
)

// app bundles the wired components a command operates on.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	uow     *uow.Manager
	codes   *refdata.CodeStore
	terms   *refdata.TermStore
	service *meta.Service
}

// openApp loads configuration, opens the database and wires the core.
// Callers must Close the returned app.
func openApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "migrate database")
	}

	engine := chain.NewEngine(logger.Logger)
	codes := refdata.NewCodeStore(engine, logger.Logger)
	terms := refdata.NewTermStore(engine, logger.Logger)
	mgr := uow.NewManager(database, logger.Logger)
	service := meta.NewService(mgr, engine, cfg.BuildRegistry(), codes, terms, logger.Logger)

	return &app{
		cfg:     cfg,
		db:      database,
		uow:     mgr,
		codes:   codes,
		terms:   terms,
		service: service,
	}, nil
}

// Close releases the app's database handle.
func (a *app) Close() {
	a.db.Close()
}

// author applies the configured default when the flag is empty.
func (a *app) author(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Audit.DefaultAuthor
}
