package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Conn is a DBTX that can also open a transaction. *pgxpool.Pool and pgx.Tx
// both satisfy it; on a pgx.Tx, Begin opens a savepoint.
type Conn interface {
	DBTX
	TxBeginner
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back when it returns an error or panics.
func WithTx(ctx context.Context, beginner TxBeginner, fn func(tx pgx.Tx) error) (err error) {
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("db: panic recovered inside transaction, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("db: failed to rollback transaction after panic")
			}
			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("db: failed to rollback transaction")
			}
			return
		}

		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("db: failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}
