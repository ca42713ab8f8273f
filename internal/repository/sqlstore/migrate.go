package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
)

// Schema files are numbered goose migrations, one directory per dialect.
// goose records applied versions in its own table, so Migrate is safe to run
// on every start.
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Migrate applies every pending schema migration and returns the resulting
// schema version.
func (db *DB) Migrate(ctx context.Context) (int64, error) {
	dir, gooseDialect := "migrations/sqlite", goose.DialectSQLite3
	if db.dialect == DialectPostgres {
		dir, gooseDialect = "migrations/postgres", goose.DialectPostgres
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db.conn, fsys)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("sqlstore: applying migrations: %w", err)
	}

	if err := db.backfillSearchColumns(ctx); err != nil {
		return 0, err
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: reading schema version: %w", err)
	}
	return version, nil
}

// backfillSearchColumns fills title_lc/content_lc for rows that predate
// them. Create and Update keep both columns current, so after the first run
// this finds nothing.
func (db *DB) backfillSearchColumns(ctx context.Context) error {
	return db.withTx(ctx, func(tx dbtx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, title, content FROM notes WHERE title_lc IS NULL OR content_lc IS NULL`)
		if err != nil {
			return fmt.Errorf("sqlstore: finding notes to backfill: %w", err)
		}

		type pending struct{ id, title, content string }
		var todo []pending
		for rows.Next() {
			var p pending
			if err := rows.Scan(&p.id, &p.title, &p.content); err != nil {
				rows.Close()
				return fmt.Errorf("sqlstore: scanning note to backfill: %w", err)
			}
			todo = append(todo, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlstore: iterating notes to backfill: %w", err)
		}

		for _, p := range todo {
			if _, err := tx.ExecContext(ctx, db.rebind(
				`UPDATE notes SET title_lc = ?, content_lc = ? WHERE id = ?`),
				strings.ToLower(p.title), strings.ToLower(p.content), p.id,
			); err != nil {
				return fmt.Errorf("sqlstore: backfilling note %s: %w", p.id, err)
			}
		}
		return nil
	})
}
