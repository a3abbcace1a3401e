package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-tracker/internal/database/migrations"
)

func init() {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(log.StandardLogger())
}

// Migrate runs a goose command ("up", "down", "status", "version", ...)
// against the embedded SQL migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return errors.Wrapf(err, "migrate %s", command)
	}
	return nil
}
