// Package postgres implements the command store against PostgreSQL using
// database/sql and lib/pq. Every statement is written so that it runs the
// same way on a *sql.DB or inside a *sql.Tx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/ignite/broadcast-mailer/internal/config"
	"github.com/ignite/broadcast-mailer/internal/service/command"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; Store runs them on the pool and Tx inside a
// transaction.
type queries struct{ q querier }

// Store implements command.Store.
type Store struct {
	db *sql.DB
	queries
}

// NewStore creates a Postgres-backed command store.
func NewStore(db *sql.DB) *Store { return &Store{db: db, queries: queries{q: db}} }

// Open connects to cfg.DSN, applies the pool settings, and pings the server.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// BeginTx opens a read-committed transaction.
func (s *Store) BeginTx(ctx context.Context) (command.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx, queries: queries{q: tx}}, nil
}

// Tx implements command.Tx.
type Tx struct {
	tx *sql.Tx
	queries
}

func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback is a no-op once the transaction has ended.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

var (
	_ command.Store = (*Store)(nil)
	_ command.Tx    = (*Tx)(nil)
)
