package report_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db/dbtest"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/report"
)

func TestPostgresRepository_Dashboard(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()

	sqlDB, err := sqlx.Connect("postgres", os.Getenv(dbtest.EnvDatabaseURL))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	repo := report.NewPostgresRepository(sqlDB)

	userID := dbtest.SeedUser(t, pool, "reportuser")
	lowID := dbtest.SeedProduct(t, pool, "Memory Card", "10.00", 3)
	highID := dbtest.SeedProduct(t, pool, "Headset", "40.00", 50)

	insertOrder := func(total, status string, items map[int64]int) {
		var orderID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO orders (user_id, reference, total, status, payment_method)
			 VALUES ($1, gen_random_uuid(), $2::numeric, $3, 'paypal') RETURNING id`,
			userID, total, status).Scan(&orderID)
		require.NoError(t, err)
		for productID, qty := range items {
			_, err := pool.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, 1)`,
				orderID, productID, qty)
			require.NoError(t, err)
		}
	}

	insertOrder("50.00", "completed", map[int64]int{lowID: 1, highID: 1})
	insertOrder("20.00", "pending", map[int64]int{lowID: 2})
	insertOrder("99.00", "cancelled", map[int64]int{highID: 5})

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	summary, err := repo.Summary(ctx, today)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("70.00").Equal(summary.DailySales), "daily sales %s", summary.DailySales)
	assert.Equal(t, 1, summary.PendingOrders)
	assert.Equal(t, 1, summary.LowStock)
	assert.Equal(t, 1, summary.ActiveCustomers)

	points, err := repo.Sales(ctx, today, "day")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, today.Format("2006-01-02"), points[0].Bucket)

	top, err := repo.TopProducts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Memory Card", top[0].Name)
	assert.Equal(t, int64(3), top[0].Units)

	recent, err := repo.RecentOrders(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "reportuser", recent[0].Customer)
}
