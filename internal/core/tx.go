package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxTxAttempts bounds the optimistic-conflict retry loop. Serialization
// failures under contention are expected and transient; anything still
// failing after this many attempts surfaces as ErrConflictRetryExhausted.
const maxTxAttempts = 5

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier extends pgxQuerier with multi-row queries.
type pgxRowQuerier interface {
	pgxQuerier
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// runSerializable executes fn inside a serializable transaction, retrying the
// whole closure on serialization or deadlock aborts (SQLSTATE 40001/40P01).
// fn must be idempotent up to its own writes: no partial effects survive an
// aborted attempt, so re-running it from the top is safe.
func runSerializable(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConflictRetryExhausted, maxTxAttempts, lastErr)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
