package databaseutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

type txKey struct {
}

// SQLExecutor defines the common methods implemented by both *sql.DB and *sql.Tx.
// This allows query helpers to work seamlessly with either a direct DB connection
// or an active transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Session interface defines the contract for transaction management.
type Session interface {
	// BeginTx starts a new database transaction and returns a new Session
	// instance that represents this transaction.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Session, error)

	// DoTransactionally executes a function 'fn' within a new transaction.
	// The context passed to 'fn' carries the transaction. The transaction is
	// committed if 'fn' returns nil, otherwise it's rolled back.
	DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) error

	// Rollback rolls back the current transaction.
	Rollback() error

	// Commit commits the current transaction.
	Commit() error

	// Context returns the context associated with this Session. If it's a
	// transactional session, this context contains the *sql.Tx.
	Context() context.Context

	// GetExecutor provides the underlying *sql.Tx (if active) or *sql.DB.
	GetExecutor() SQLExecutor
}

// sqlSession implements the Session interface. It wraps either a *sql.DB
// (to begin new transactions) or a *sql.Tx (when a transaction is active).
type sqlSession struct {
	db  *sql.DB
	tx  *sql.Tx
	ctx context.Context
}

// NewSession creates a new Session instance wrapping the provided *sql.DB.
func NewSession(db *sql.DB) Session {
	return &sqlSession{
		db: db,
	}
}

func (s *sqlSession) BeginTx(ctx context.Context, opts *sql.TxOptions) (Session, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("session: failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	return &sqlSession{
		db:  s.db,
		tx:  tx,
		ctx: txCtx,
	}, nil
}

// DoTransactionally executes a function 'fn' within a new transaction.
// It handles the begin, commit, and rollback logic.
func (s *sqlSession) DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	session, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			// A panic occurred, so rollback the transaction and re-panic.
			_ = session.Rollback()
			panic(p)
		} else if err != nil {
			if rollbackErr := session.Rollback(); rollbackErr != nil {
				log.Printf("session: failed to rollback transaction after error: %v (original error: %v)", rollbackErr, err)
			}
		} else {
			if commitErr := session.Commit(); commitErr != nil {
				err = fmt.Errorf("session: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	err = fn(session.Context())
	return err
}

func (s *sqlSession) Rollback() error {
	if s.tx == nil {
		return fmt.Errorf("session: no active transaction to rollback")
	}
	return s.tx.Rollback()
}

func (s *sqlSession) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("session: no active transaction to commit")
	}
	return s.tx.Commit()
}

func (s *sqlSession) Context() context.Context {
	return s.ctx
}

func (s *sqlSession) GetExecutor() SQLExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// GetSQLExecutor retrieves the correct database handle from the context.
// If a transaction (*sql.Tx) is present in the context, it returns that
// transaction. Otherwise, it returns the fallback *sql.DB connection.
func GetSQLExecutor(ctx context.Context, fallbackDB *sql.DB) SQLExecutor {
	dbExecutor := ctx.Value(txKey{})

	if dbExecutor == nil {
		// Operations on *sql.DB auto-commit single statements.
		return fallbackDB
	}

	tx, ok := dbExecutor.(*sql.Tx)
	if !ok {
		panic(fmt.Sprintf("session: value in context for txKey is not a *sql.Tx, but %T", dbExecutor))
	}
	return tx
}

func DoTransactionally[T any](ctx context.Context, session Session, fn func(txCtx context.Context) (T, error)) (T, error) {
	var zero T
	var result T
	err := session.DoTransactionally(ctx, func(txCtx context.Context) error {
		r, err := fn(txCtx)
		result = r
		return err
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}
