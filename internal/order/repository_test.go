package order_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db/dbtest"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
)

func TestRepository_CreateAndLookup(t *testing.T) {
	pool := dbtest.Open(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	userID := dbtest.SeedUser(t, pool, "player1")
	productID := dbtest.SeedProduct(t, pool, "Game A", "10.00", 5)

	o := &order.Order{
		UserID:        userID,
		Total:         decimal.RequireFromString("20.00"),
		Status:        order.StatusPending,
		PaymentMethod: order.PaymentMercadoPago,
		Items: []order.Item{
			{ProductID: productID, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	require.NoError(t, repo.Create(ctx, o))
	require.NotZero(t, o.ID)
	require.NotZero(t, o.Items[0].ID)

	byRef, err := repo.GetByReferenceForUpdate(ctx, o.Reference)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byRef.ID)
	require.Len(t, byRef.Items, 1)
	assert.Equal(t, "Game A", byRef.Items[0].ProductName)
	assert.True(t, o.Total.Equal(byRef.Total))

	txn := "pay-123"
	updated, err := repo.Modify(ctx, o.ID, func(o *order.Order) error {
		o.TransactionID = &txn
		o.Status = order.StatusCompleted
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, updated.Status)

	byTxn, err := repo.GetByTransactionForUpdate(ctx, order.PaymentMercadoPago, txn)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byTxn.ID)

	_, err = repo.GetByTransactionForUpdate(ctx, order.PaymentPayPal, txn)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	mine, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	if diff := cmp.Diff(byRef.Items, mine[0].Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	completed, err := repo.List(ctx, order.ListFilter{Status: order.StatusCompleted, Search: "player"})
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestRepository_TransactionIDUniquePerMethod(t *testing.T) {
	pool := dbtest.Open(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	userID := dbtest.SeedUser(t, pool, "player1")
	txn := "dup-1"

	first := &order.Order{UserID: userID, Total: decimal.Zero, Status: order.StatusCompleted, PaymentMethod: order.PaymentPayPal, TransactionID: &txn}
	require.NoError(t, repo.Create(ctx, first))

	second := &order.Order{UserID: userID, Total: decimal.Zero, Status: order.StatusCompleted, PaymentMethod: order.PaymentPayPal, TransactionID: &txn}
	require.ErrorIs(t, repo.Create(ctx, second), apperr.ErrConflict)
}
