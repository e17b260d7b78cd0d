package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/broadcast-mailer/internal/pkg/logger"
)

// MigrationFiles returns the .sql files in dir in lexical order.
func MigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Migrate runs every migration file in dir, each in its own transaction.
// Files must be idempotent; Migrate keeps no version table. It stops at the
// first failure and returns the number of files applied.
func Migrate(ctx context.Context, db *sql.DB, dir string) (int, error) {
	files, err := MigrationFiles(dir)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", path, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if err := execMigration(ctx, db, string(data)); err != nil {
			return applied, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		logger.Info("migration applied", "file", filepath.Base(path))
		applied++
	}
	return applied, nil
}

func execMigration(ctx context.Context, db *sql.DB, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		tx.Rollback()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("sqlstate %s at position %s: %w", pqErr.Code, pqErr.Position, err)
		}
		return err
	}
	return tx.Commit()
}

// Tables lists the tables in the public schema.
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
