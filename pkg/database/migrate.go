package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// connPatterns identify transient connection failures. Only these are retried;
// SQL errors are returned immediately.
var connPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range connPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Migrator is the connection surface RunMigrations needs.
type Migrator interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunMigrations applies every *.up.sql file at the root of migrations in
// lexical order, each inside its own transaction, recording applied versions
// in schema_migrations. Connection errors are retried with backoff.
func RunMigrations(ctx context.Context, db Migrator, migrations fs.FS, logger *slog.Logger) error {
	return retry(ctx, "run migrations", logger, isConnectionError, func() error {
		return applyPending(ctx, db, migrations, logger)
	})
}

func applyPending(ctx context.Context, db Migrator, migrations fs.FS, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		var applied bool
		if err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			logger.Debug("migration already applied", slog.String("version", name))
			continue
		}

		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applyOne(ctx, db, name, string(content)); err != nil {
			return err
		}
		logger.Info("migration applied", slog.String("version", name))
	}
	return nil
}

func applyOne(ctx context.Context, db Migrator, name, sql string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for migration %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
