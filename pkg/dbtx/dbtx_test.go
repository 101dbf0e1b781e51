package dbtx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/accounterr"
)

type countingBeginner struct {
	begins    int
	commits   int
	rollbacks int
}

func (b *countingBeginner) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	b.begins++
	return &countingTx{beginner: b}, nil
}

type countingTx struct {
	pgx.Tx
	beginner *countingBeginner
}

func (t *countingTx) Commit(ctx context.Context) error {
	t.beginner.commits++
	return nil
}

func (t *countingTx) Rollback(ctx context.Context) error {
	t.beginner.rollbacks++
	return nil
}

var errSerialization = errors.New("could not serialize access due to concurrent update")

func newTestExecutor(b Beginner) *Executor {
	return New(b, WithSleep(func(time.Duration) {}))
}

func TestExecuteTxCommits(t *testing.T) {
	beginner := &countingBeginner{}
	executor := newTestExecutor(beginner)

	value, err := ExecuteTx(context.Background(), executor, func(ctx context.Context, tx *TxContext) (string, error) {
		if err := tx.Commit(ctx); err != nil {
			return "", err
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", value)
	assert.Equal(t, 1, beginner.begins)
	assert.Equal(t, 1, beginner.commits)
	assert.Equal(t, 0, beginner.rollbacks)
}

func TestExecuteTxRetriesConcurrencyErrors(t *testing.T) {
	beginner := &countingBeginner{}
	executor := newTestExecutor(beginner)

	failures := 3
	attempts := 0

	value, err := ExecuteTx(context.Background(), executor, func(ctx context.Context, tx *TxContext) (int, error) {
		attempts++
		if attempts <= failures {
			return 0, errSerialization
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, err
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, failures+1, attempts)
	assert.Equal(t, failures, beginner.rollbacks, "each failed attempt must roll back")
	assert.Equal(t, 1, beginner.commits)
}

func TestExecuteTxExhaustsRetryBudget(t *testing.T) {
	beginner := &countingBeginner{}
	executor := newTestExecutor(beginner)

	attempts := 0
	err := executor.ExecuteTx(context.Background(), func(ctx context.Context, tx *TxContext) error {
		attempts++
		return errSerialization
	})

	require.Error(t, err)
	assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeSQLConcurrent))
	assert.ErrorIs(t, err, errSerialization, "terminal error must carry the original error")
	assert.Equal(t, DefaultMaxAttempts, attempts)
	assert.Equal(t, DefaultMaxAttempts, beginner.rollbacks)
}

func TestExecuteTxDoesNotRetryOtherErrors(t *testing.T) {
	beginner := &countingBeginner{}
	executor := newTestExecutor(beginner)

	domainErr := accounterr.New(accounterr.ErrCodeBadCredentials)
	attempts := 0

	err := executor.ExecuteTx(context.Background(), func(ctx context.Context, tx *TxContext) error {
		attempts++
		return domainErr
	})

	require.Error(t, err)
	assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeBadCredentials))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, beginner.rollbacks)
}

func TestExecuteTxSkipsRollbackWhenAlreadyFinished(t *testing.T) {
	beginner := &countingBeginner{}
	executor := newTestExecutor(beginner)

	domainErr := accounterr.New(accounterr.ErrCodeTokenExpired)

	err := executor.ExecuteTx(context.Background(), func(ctx context.Context, tx *TxContext) error {
		// Some flows commit lockout accounting before surfacing the error.
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return domainErr
	})

	require.Error(t, err)
	assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeTokenExpired))
	assert.Equal(t, 1, beginner.commits)
	assert.Equal(t, 0, beginner.rollbacks)
}

func TestExecuteTxRejectsMissingCommit(t *testing.T) {
	beginner := &countingBeginner{}
	executor := newTestExecutor(beginner)

	err := executor.ExecuteTx(context.Background(), func(ctx context.Context, tx *TxContext) error {
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "without committing")
	assert.Equal(t, 1, beginner.rollbacks)
}

func TestTxContextDoubleFinish(t *testing.T) {
	beginner := &countingBeginner{}
	tx, err := beginner.BeginTx(context.Background(), pgx.TxOptions{})
	require.NoError(t, err)

	txCtx := &TxContext{tx: tx}
	require.NoError(t, txCtx.Commit(context.Background()))
	assert.True(t, txCtx.Committed())

	assert.Error(t, txCtx.Commit(context.Background()))
	assert.Error(t, txCtx.Rollback(context.Background()))
}

func TestIsConcurrencyError(t *testing.T) {
	assert.True(t, IsConcurrencyError(errSerialization))
	assert.True(t, IsConcurrencyError(errors.New("could not serialize access due to read/write dependencies among transactions")))
	assert.False(t, IsConcurrencyError(errors.New("duplicate key value violates unique constraint")))
	assert.False(t, IsConcurrencyError(nil))
}
