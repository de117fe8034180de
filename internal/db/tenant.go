package db

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// serializationFailureCode is the Postgres SQLSTATE raised when a
// SERIALIZABLE transaction can't be placed in any serial order.
const serializationFailureCode = "40001"

// Querier is the subset of pgx.Tx the tenant-bound primitives expose to
// callers, so read-path code doesn't need to depend on pgx.Tx directly.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pool wraps a pgxpool.Pool with tenant-bound transactional scopes.
type Pool struct {
	*pgxpool.Pool
	AcquireTimeout   time.Duration
	StatementTimeout time.Duration
}

// NewPool wraps an already-opened pgxpool.Pool with timeout defaults.
func NewPool(underlying *pgxpool.Pool, opts Options) *Pool {
	p := &Pool{Pool: underlying, AcquireTimeout: opts.AcquireTimeout, StatementTimeout: opts.StatementTimeout}
	if p.AcquireTimeout <= 0 {
		p.AcquireTimeout = 2 * time.Second
	}
	if p.StatementTimeout <= 0 {
		p.StatementTimeout = 5 * time.Second
	}
	return p
}

// WithTenantConn runs fn inside a READ COMMITTED transaction with the
// tenant GUC set as the first statement. It is the primitive for
// read-only, tenant-scoped queries (the board and stats aggregates).
func (p *Pool) WithTenantConn(ctx context.Context, tenantID string, fn func(ctx context.Context, q Querier) error) error {
	return p.withTenantTx(ctx, tenantID, pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// WithTenantTx runs fn inside a transaction at the given isolation level
// with the tenant GUC set as the first statement, committing on success
// and rolling back on any error (including a panic, via the deferred
// Rollback which is a no-op once Commit has succeeded).
func (p *Pool) WithTenantTx(ctx context.Context, tenantID string, isoLevel pgx.TxIsoLevel, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return p.withTenantTx(ctx, tenantID, isoLevel, fn)
}

func (p *Pool) withTenantTx(ctx context.Context, tenantID string, isoLevel pgx.TxIsoLevel, fn func(ctx context.Context, tx pgx.Tx) error) error {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, p.AcquireTimeout)
	defer cancelAcquire()

	tx, err := p.Pool.BeginTx(acquireCtx, pgx.TxOptions{IsoLevel: isoLevel})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after a successful Commit

	stmtCtx := ctx
	if p.StatementTimeout > 0 {
		var cancelStmt context.CancelFunc
		stmtCtx, cancelStmt = context.WithTimeout(ctx, p.StatementTimeout)
		defer cancelStmt()
	}

	// SET LOCAL via set_config(..., true) is transaction-scoped: it
	// resets automatically on commit or rollback, so no pooled
	// connection can ever leak a tenant binding to its next borrower.
	if _, err := tx.Exec(stmtCtx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID); err != nil {
		return err
	}

	if err := fn(stmtCtx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure (SQLSTATE 40001), the error SERIALIZABLE transactions raise
// when they cannot be placed in any serial order with a concurrent
// transaction.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode
}

// RetrySerializable runs a SERIALIZABLE tenant-bound transaction, retrying
// up to maxRetries additional times with 10-40ms jitter when the
// database reports a serialization failure, matching the move
// executor's bounded-retry contract.
func RetrySerializable(ctx context.Context, p *Pool, tenantID string, maxRetries int, fn func(ctx context.Context, tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := p.WithTenantTx(ctx, tenantID, pgx.Serializable, fn)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		if sleepErr := jitterSleep(ctx); sleepErr != nil {
			return sleepErr
		}
	}
	return lastErr
}

// jitterSleep sleeps for a random duration in [10ms, 40ms), honoring
// context cancellation.
func jitterSleep(ctx context.Context) error {
	n, err := rand.Int(rand.Reader, big.NewInt(30))
	if err != nil {
		n = big.NewInt(15)
	}
	d := 10*time.Millisecond + time.Duration(n.Int64())*time.Millisecond
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
