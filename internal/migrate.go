package internal

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

// Migrations are embedded so the binary is self-contained; the server
// applies pending ones at startup, before any handler is registered.
//
//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies all pending migrations in order. Goose records
// applied versions in the goose_db_version table, so reruns are no-ops.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(db, "migrations")
}
