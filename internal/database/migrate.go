package database

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.trai.ch/zerr"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies all embedded up migrations to the database at path.
// It uses its own connection so the caller's *sql.DB is never closed by migrate.
func Migrate(path string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return zerr.Wrap(err, "load migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path+"?_foreign_keys=on")
	if err != nil {
		return zerr.Wrap(err, "init migrations")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return zerr.Wrap(err, "apply migrations")
	}
	return nil
}
