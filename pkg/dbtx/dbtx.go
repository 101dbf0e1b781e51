package dbtx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/simple-account/pkg/accounterr"
)

// Beginner abstracts the pgx pool so tests can substitute fake transactions.
// *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

const (
	finishedCommit   = "commit"
	finishedRollback = "rollback"
)

// TxContext carries one open transaction through a unit of work and tracks
// whether it has been finalized. The work function must end with Commit;
// any path that does not commit must roll back before returning.
type TxContext struct {
	tx       pgx.Tx
	finished string
}

// Tx exposes the underlying transaction for repository calls.
func (t *TxContext) Tx() pgx.Tx {
	return t.tx
}

// Commit finalizes the transaction.
func (t *TxContext) Commit(ctx context.Context) error {
	if t.finished != "" {
		return fmt.Errorf("transaction already finished with state: %s", t.finished)
	}
	if err := t.tx.Commit(ctx); err != nil {
		return err
	}
	t.finished = finishedCommit
	return nil
}

// Rollback aborts the transaction.
func (t *TxContext) Rollback(ctx context.Context) error {
	if t.finished != "" {
		return fmt.Errorf("transaction already finished with state: %s", t.finished)
	}
	if err := t.tx.Rollback(ctx); err != nil {
		return err
	}
	t.finished = finishedRollback
	return nil
}

// Finished reports whether Commit or Rollback has been called.
func (t *TxContext) Finished() bool {
	return t.finished != ""
}

// Committed reports whether the transaction ended with a commit.
func (t *TxContext) Committed() bool {
	return t.finished == finishedCommit
}

const (
	// DefaultMaxAttempts bounds the retry loop for concurrency-conflict errors.
	DefaultMaxAttempts = 10
	// DefaultRetryBase scales the randomized delay between retries.
	DefaultRetryBase = 100 * time.Millisecond
)

// Executor runs units of work inside serializable transactions, retrying
// concurrency-conflict aborts with randomized backoff.
type Executor struct {
	db          Beginner
	maxAttempts int
	retryBase   time.Duration
	sleep       func(time.Duration)
	randFloat   func() float64
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts overrides the retry bound.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		e.maxAttempts = n
	}
}

// WithRetryBase overrides the base delay between retries.
func WithRetryBase(d time.Duration) Option {
	return func(e *Executor) {
		e.retryBase = d
	}
}

// WithSleep substitutes the sleep function, for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// New creates an Executor with the default retry policy.
func New(db Beginner, opts ...Option) *Executor {
	e := &Executor{
		db:          db,
		maxAttempts: DefaultMaxAttempts,
		retryBase:   DefaultRetryBase,
		sleep:       time.Sleep,
		randFloat:   rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsConcurrencyError classifies serialization failures and deadlocks that a
// retry at serializable isolation can resolve.
func IsConcurrencyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	msg := err.Error()
	return strings.Contains(msg, "could not serialize access due to concurrent") ||
		strings.Contains(msg, "could not serialize access due to read/write dependencies among transactions")
}

// ExecuteTx opens a serializable transaction and invokes fn with it. The last
// action inside fn must be an explicit tx.Commit; on error the transaction is
// rolled back unless fn already finalized it. Concurrency-conflict errors are
// retried up to the configured bound with a randomized delay; exhausting the
// budget surfaces sql_concurrent carrying the last SQL error. All other
// errors propagate immediately.
//
// fn must be safe to invoke multiple times: no non-transactional side effects
// before commit.
func (e *Executor) ExecuteTx(ctx context.Context, fn func(ctx context.Context, tx *TxContext) error) error {
	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(e.randFloat()*float64(e.retryBase)) + 100*time.Millisecond
			slog.Warn("SQL concurrent error, retrying transaction", "attempt", attempt, "delay", delay, "err", lastErr)
			e.sleep(delay)
		}

		err := e.tryTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsConcurrencyError(err) {
			return err
		}
		lastErr = err
	}

	return accounterr.Wrap(lastErr, accounterr.ErrCodeSQLConcurrent, "transaction retry budget exhausted")
}

func (e *Executor) tryTx(ctx context.Context, fn func(ctx context.Context, tx *TxContext) error) error {
	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := &TxContext{tx: tx}

	err = fn(ctx, txCtx)
	if err == nil && !txCtx.Finished() {
		err = fmt.Errorf("work function returned without committing")
	}

	if err != nil {
		if !txCtx.Finished() {
			if rollbackErr := txCtx.Rollback(ctx); rollbackErr != nil {
				slog.Warn("unable to rollback transaction", "err", rollbackErr)
			}
		}
		return err
	}

	return nil
}

// ExecuteTx runs fn inside the executor's retry loop and returns its value.
// See Executor.ExecuteTx for the commit contract.
func ExecuteTx[T any](ctx context.Context, e *Executor, fn func(ctx context.Context, tx *TxContext) (T, error)) (T, error) {
	var result T
	err := e.ExecuteTx(ctx, func(ctx context.Context, tx *TxContext) error {
		var fnErr error
		result, fnErr = fn(ctx, tx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
