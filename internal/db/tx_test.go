package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	err := db.WithTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error { return nil })

	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	wantErr := errors.New("boom")
	err := db.WithTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error { return wantErr })

	require.ErrorIs(t, err, wantErr)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestWithTx_CommitFailureIsReturned(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("serialization failure")}
	err := db.WithTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
}

func TestWithTx_BeginFailure(t *testing.T) {
	called := false
	err := db.WithTx(context.Background(), &fakeBeginner{beginErr: errors.New("pool closed")}, func(pgx.Tx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
}

func TestWithTx_RollsBackAndRepanics(t *testing.T) {
	tx := &fakeTx{}

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = db.WithTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error { panic("kaboom") })
	})
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}
