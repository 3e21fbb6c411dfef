// Package repository implements the domain storage interfaces on PostgreSQL
// using pgx. Transaction scopes wrap pgx transactions at REPEATABLE READ;
// serialization failures and deadlocks are classified as transient so the
// domain retry loop can distinguish them from request-level errors.
package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-backend/db"
	"github.com/xenking/shop-backend/internal/domain/tx"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

var _ tx.Manager = (*TxManager)(nil)

// TxManager creates transaction scopes backed by pgx transactions.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager that uses the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// Begin opens a REPEATABLE READ transaction. Combined with the FOR UPDATE
// reads issued by the repositories this is the sole concurrency control for
// stock decrements.
func (m *TxManager) Begin(ctx context.Context) (tx.Scope, error) {
	pgxTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, classify(errors.Wrap(err, "begin transaction"))
	}
	return &txScope{tx: pgxTx}, nil
}

// txScope wraps a pgx transaction as a tx.Scope.
type txScope struct {
	tx pgx.Tx
}

func (s *txScope) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return classify(errors.Wrap(err, "commit transaction"))
	}
	return nil
}

// Abort rolls the transaction back. Rolling back an already finished
// transaction is a no-op, so callers may defer it unconditionally.
func (s *txScope) Abort(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, "rollback transaction")
	}
	return nil
}

// querier returns the executor for the given scope: the transaction when a
// scope is supplied, the pool for standalone statements.
func querier(pool *pgxpool.Pool, scope tx.Scope) interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	if scope == nil {
		return pool
	}
	return scope.(*txScope).tx
}

// conflictError marks a data-store failure caused by concurrent contention.
// It satisfies the retry.Transient capability.
type conflictError struct {
	err error
}

func (e *conflictError) Error() string     { return e.err.Error() }
func (e *conflictError) Unwrap() error     { return e.err }
func (e *conflictError) IsTransient() bool { return true }

// PostgreSQL error codes that indicate a transient conflict.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// classify wraps serialization failures and deadlocks so they satisfy the
// transient capability. Every other error passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return &conflictError{err: err}
		}
	}
	return err
}
