package database

import (
	"database/sql"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrate runs a goose command ("up", "down", "status", "redo", "version", ...)
// against the SQL files at the root of migrations.
func Migrate(db *sql.DB, migrations fs.FS, command string, args ...string) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Run(command, db, ".", args...)
}
