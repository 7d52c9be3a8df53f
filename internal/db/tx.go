package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tentativasTx limita as repetições após falha de serialização ou deadlock.
const tentativasTx = 3

// WithTx executa fn numa transação READ COMMITTED. Se o Postgres abortar por
// serialização (40001) ou deadlock (40P01) a transação inteira é repetida, por
// isso fn não pode ter efeitos fora do tx.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) error {
	var err error
	for i := 0; i < tentativasTx; i++ {
		err = pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(ctx, tx)
		})
		if !repetivel(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func repetivel(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
