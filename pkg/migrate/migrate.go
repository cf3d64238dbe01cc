// Package migrate applies SQL files from a directory in lexical order,
// tracking applied files in schema_migrations. Migrations are forward-only.
package migrate

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const ensureTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`

func Run(ctx context.Context, pool *pgxpool.Pool, dir string, log *logrus.Logger) error {
	if _, err := pool.Exec(ctx, ensureTableSQL); err != nil {
		return errors.Wrap(err, "ensure schema_migrations")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "read migrations dir %s", dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := isApplied(ctx, pool, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return errors.Wrapf(err, "read migration %s", name)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "apply migration %s", name)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1)", name); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "record migration %s", name)
		}
		if err := tx.Commit(ctx); err != nil {
			return errors.Wrapf(err, "commit migration %s", name)
		}
		log.WithField("migration", name).Info("migration applied")
	}
	return nil
}

func isApplied(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)", name,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check migration state")
	}
	return exists, nil
}
