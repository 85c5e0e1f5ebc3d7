package service

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/database"
	"github.com/jask/pocketbook/internal/logger"
)

var (
	// ErrBackupExists is returned when a backup would overwrite a file.
	ErrBackupExists = zerr.New("backup file already exists")
	// ErrNotABackup is returned when a restore source lacks the pocketbook tables.
	ErrNotABackup = zerr.New("not a pocketbook backup")
)

// userTables lists data tables in delete order; inserts run in reverse.
var userTables = []string{"budget_overrides", "budgets", "transactions", "categories", "accounts"}

var tableColumns = map[string]string{
	"accounts":         "id, name, institution, account_type, balance, number_enc, created_at, updated_at",
	"budgets":          "id, category_id, amount, created_at, updated_at",
	"budget_overrides": "budget_id, month, amount",
	"categories":       "id, parent_id, name, icon, sort_order",
	"transactions":     "id, account_id, date, amount, description, category_id, kind, transfer_id, note_enc, source_hash, created_at, updated_at",
}

// Invalidator is notified after data changes underneath the cache.
type Invalidator interface {
	InvalidateCache()
}

// MaintenanceService houses destructive/ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB    *sql.DB
	Cache Invalidator
	Log   *slog.Logger
}

func (s *MaintenanceService) log() *slog.Logger {
	if s.Log == nil {
		return logger.Discard()
	}
	return s.Log
}

func (s *MaintenanceService) ready() error {
	if s.DB == nil {
		return zerr.New("maintenance: db not configured")
	}
	return nil
}

// Reset wipes all user data. It keeps the schema intact so the app can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		for _, t := range userTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return zerr.With(zerr.Wrap(err, "reset table"), "table", t)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, "VACUUM"); err != nil {
		s.log().Warn("vacuum after reset failed", "error", err)
	}
	s.log().Info("database reset")
	s.invalidate()
	return nil
}

// Backup writes a consistent copy of the database to path. Existing files are never overwritten.
func (s *MaintenanceService) Backup(ctx context.Context, path string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return zerr.With(zerr.Wrap(ErrBackupExists, "backup"), "path", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return zerr.Wrap(err, "stat backup path")
	}
	if _, err := s.DB.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return zerr.With(zerr.Wrap(err, "vacuum into backup"), "path", path)
	}
	s.log().Info("backup written", "path", path)
	return nil
}

// Restore replaces all user data with the contents of the backup at path.
// The backup must have been written with the same field key.
func (s *MaintenanceService) Restore(ctx context.Context, path string) (err error) {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return zerr.With(zerr.Wrap(err, "open backup"), "path", path)
	}

	// ATTACH is per connection, so everything below runs on one pinned conn.
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return zerr.Wrap(err, "acquire connection")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS backup", path); err != nil {
		return zerr.With(zerr.Wrap(err, "attach backup"), "path", path)
	}
	defer func() {
		if _, derr := conn.ExecContext(context.Background(), "DETACH DATABASE backup"); derr != nil && err == nil {
			err = zerr.Wrap(derr, "detach backup")
		}
	}()

	var found int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup.sqlite_master WHERE type = 'table' AND name IN ('`+strings.Join(userTables, "', '")+`')`,
	).Scan(&found); err != nil {
		return zerr.With(errors.Join(ErrNotABackup, err), "path", path)
	}
	if found != len(userTables) {
		return zerr.With(zerr.Wrap(ErrNotABackup, "restore"), "path", path)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, "begin restore")
	}
	if err := copyTables(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, "commit restore")
	}

	s.log().Info("backup restored", "path", path)
	s.invalidate()
	return nil
}

func copyTables(ctx context.Context, tx *sql.Tx) error {
	// categories reference themselves; check constraints at commit
	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return zerr.Wrap(err, "defer foreign keys")
	}
	for _, t := range userTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM main."+t); err != nil {
			return zerr.With(zerr.Wrap(err, "clear table"), "table", t)
		}
	}
	for i := len(userTables) - 1; i >= 0; i-- {
		t := userTables[i]
		cols := tableColumns[t]
		q := "INSERT INTO main." + t + " (" + cols + ") SELECT " + cols + " FROM backup." + t
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return zerr.With(zerr.Wrap(err, "copy table"), "table", t)
		}
	}
	return nil
}

func (s *MaintenanceService) invalidate() {
	if s.Cache != nil {
		s.Cache.InvalidateCache()
	}
}
