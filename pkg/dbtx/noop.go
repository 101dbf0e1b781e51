package dbtx

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// NoopBeginner hands out transactions that commit and roll back without a
// database. It backs service tests running on in-memory repositories.
type NoopBeginner struct{}

func (NoopBeginner) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return noopTx{}, nil
}

// noopTx satisfies pgx.Tx for the methods the executor touches. Query
// methods are never reached when repositories ignore the transaction.
type noopTx struct {
	pgx.Tx
}

func (noopTx) Commit(ctx context.Context) error {
	return nil
}

func (noopTx) Rollback(ctx context.Context) error {
	return nil
}
