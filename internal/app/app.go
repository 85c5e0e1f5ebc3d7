// Package app wires configuration, storage, the preload cache and the ledger
// services into one set of components for the CLI.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/cache"
	"github.com/jask/pocketbook/internal/config"
	"github.com/jask/pocketbook/internal/database"
	"github.com/jask/pocketbook/internal/database/repository"
	"github.com/jask/pocketbook/internal/ledger"
	"github.com/jask/pocketbook/internal/secrets"
	"github.com/jask/pocketbook/internal/service"
	"github.com/jask/pocketbook/internal/testdata"
)

// App holds the wired components. Close releases them.
type App struct {
	Config      config.Config
	Log         *slog.Logger
	DB          *sql.DB
	Cache       *cache.Manager
	Ledger      *ledger.Service
	Maintenance *service.MaintenanceService
	Repos       testdata.Repos
}

// Open migrates and opens the database, loads the field key and builds the
// cache manager. The manager is not started.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := database.Setup(cfg.Database.Path)
	if err != nil {
		return nil, zerr.With(err, "db", cfg.Database.Path)
	}
	if err := database.SeedDefaults(ctx, db); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "seed defaults")
	}

	cipher, err := secrets.OpenFieldCipher(cfg.Security.KeyPath)
	if err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, "load field key"), "key_path", cfg.Security.KeyPath)
	}

	mgr := cache.New(database.NewStore(db, cipher), cache.Options{
		FreshnessWindow:   cfg.Cache.FreshnessWindow,
		TransactionWindow: time.Duration(cfg.Cache.TransactionDays) * 24 * time.Hour,
		Logger:            log,
	})

	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Cache:       mgr,
		Ledger:      ledger.New(db, cipher, mgr, log),
		Maintenance: &service.MaintenanceService{DB: db, Cache: mgr, Log: log.With("component", "maintenance")},
		Repos: testdata.Repos{
			Accounts:     repository.NewAccountRepo(db, cipher),
			Categories:   repository.NewCategoryRepo(db),
			Transactions: repository.NewTransactionRepo(db, cipher),
		},
	}, nil
}

// Close stops the cache manager and closes the database.
func (a *App) Close() error {
	a.Cache.Close()
	return a.DB.Close()
}
