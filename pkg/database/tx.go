package database

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
)

type contextKey string

// TxKey is the context key for the transaction started by WithTx.
const TxKey contextKey = "metastoreTx"

// GetTx retrieves the transaction from context.
// Returns nil and false if not present.
func GetTx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(TxKey).(*sql.Tx)
	return tx, ok
}

// Conn returns the transaction in ctx, or the pool when there is none.
// Repositories must query through Conn so they join the caller's transaction.
func (db *DB) Conn(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return tx
	}
	return db.DB
}

// WithTx runs fn inside a transaction carried by the context passed to fn.
// A nested call joins the outer transaction. Any error returned by fn rolls
// the transaction back; store errors that are not already classified are
// surfaced as apperrors.ErrTransaction.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Transaction("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, TxKey, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return apperrors.Transaction("rolled back", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Transaction("commit", err)
	}
	return nil
}
