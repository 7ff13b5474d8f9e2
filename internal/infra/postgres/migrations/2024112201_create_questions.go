package migrations

import (
	"context"
	"embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var sqlFiles embed.FS

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execFile(ctx, db, "0001_create_questions.sql")
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS question_submissions; DROP TABLE IF EXISTS questions`)
			return err
		},
	)
}

func execFile(ctx context.Context, db *bun.DB, name string) error {
	body, err := sqlFiles.ReadFile(name)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(body))
	return err
}
