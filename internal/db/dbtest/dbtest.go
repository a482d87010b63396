// Package dbtest opens the integration-test database. Tests that need Postgres
// call Open and are skipped when TEST_DATABASE_URL is unset.
package dbtest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

const EnvDatabaseURL = "TEST_DATABASE_URL"

// Open connects to TEST_DATABASE_URL (postgres:// form), applies migrations and
// truncates every business table before and after the test.
func Open(tb testing.TB) *pgxpool.Pool {
	tb.Helper()

	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		tb.Skipf("%s is not set, skipping integration test", EnvDatabaseURL)
	}

	migrateURL := "pgx5://" + strings.TrimPrefix(strings.TrimPrefix(url, "postgres://"), "postgresql://")
	require.NoError(tb, db.ApplyMigrations(migrateURL), "failed to apply migrations")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, pool.Ping(ctx), "failed to ping test database")

	Truncate(tb, pool)
	tb.Cleanup(func() {
		Truncate(tb, pool)
		pool.Close()
	})

	return pool
}

func Truncate(tb testing.TB, pool *pgxpool.Pool) {
	tb.Helper()
	_, err := pool.Exec(context.Background(),
		"TRUNCATE TABLE favorites, order_items, orders, cart_items, carts, products, sessions, users RESTART IDENTITY CASCADE")
	require.NoError(tb, err, "failed to truncate tables")
}

// SeedUser inserts a customer row and returns its id.
func SeedUser(tb testing.TB, pool *pgxpool.Pool, username string) int64 {
	tb.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, 'x') RETURNING id`,
		username, username+"@example.com").Scan(&id)
	require.NoError(tb, err)
	return id
}

// SeedProduct inserts a product in the first seeded category and returns its id.
func SeedProduct(tb testing.TB, pool *pgxpool.Pool, name, price string, stock int) int64 {
	tb.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (name, price, stock, category_id, active)
		 VALUES ($1, $2::numeric, $3, (SELECT min(id) FROM categories), $3::integer > 0) RETURNING id`,
		name, price, stock).Scan(&id)
	require.NoError(tb, err)
	return id
}
