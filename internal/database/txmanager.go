// Package database provides database connection management and utilities.
package database

import (
	"context"
	"database/sql"
)

// txKey is a context key type for storing database transactions.
type txKey struct{}

// Querier represents a database query executor (either *sql.DB or *sql.Tx).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager manages database transactions.
type TxManager interface {
	// WithTx executes fn inside a transaction. The whole transaction is retried when it
	// fails with a transient store error, so fn must not have side effects outside it.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// WithRetry executes fn without a transaction, retrying transient store errors.
	WithRetry(ctx context.Context, fn func(ctx context.Context) error) error
}

// sqlTxManager implements TxManager for SQL databases.
type sqlTxManager struct {
	db     *sql.DB
	policy RetryPolicy
}

// NewTxManager creates a new TxManager for the given database using DefaultRetryPolicy.
func NewTxManager(db *sql.DB) TxManager {
	return &sqlTxManager{db: db, policy: DefaultRetryPolicy()}
}

// NewTxManagerWithPolicy creates a new TxManager with a custom retry policy.
func NewTxManagerWithPolicy(db *sql.DB, policy RetryPolicy) TxManager {
	return &sqlTxManager{db: db, policy: policy}
}

// WithTx executes the function within a database transaction.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer transaction.
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	return Retry(ctx, m.policy, func() error {
		return m.runTx(ctx, fn)
	})
}

// WithRetry executes the function outside a transaction with bounded retries.
func (m *sqlTxManager) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return Retry(ctx, m.policy, func() error {
		return fn(ctx)
	})
}

func (m *sqlTxManager) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return rbErr
		}
		return err
	}

	return tx.Commit()
}

// GetTx retrieves a transaction from context, or returns the DB connection.
func GetTx(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
