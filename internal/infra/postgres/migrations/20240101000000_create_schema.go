package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_schema.sql
var createSchemaSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS settings;
				DROP TABLE IF EXISTS group_stats;
				DROP TABLE IF EXISTS daily_stats;
				DROP TABLE IF EXISTS stats;
				DROP TABLE IF EXISTS admins;
				DROP TABLE IF EXISTS chats;
				DROP TABLE IF EXISTS users;
				DROP TABLE IF EXISTS active_polls;
				DROP TABLE IF EXISTS questions;
			`)
			return err
		},
	)
}
