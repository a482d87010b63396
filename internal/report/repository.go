package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
)

// Repository runs the read-only dashboard queries. Dates are bucketed in UTC.
type Repository interface {
	Summary(ctx context.Context, dayStart time.Time) (*Summary, error)
	// Sales returns revenue per bucket ("day" or "month") for orders created
	// at or after since. Cancelled orders are excluded.
	Sales(ctx context.Context, since time.Time, bucket string) ([]SalesPoint, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Summary(ctx context.Context, dayStart time.Time) (*Summary, error) {
	query := `
		SELECT
			(SELECT COALESCE(SUM(total), 0) FROM orders
			  WHERE status <> 'cancelled' AND created_at >= $1::timestamptz AND created_at < $1::timestamptz + interval '1 day') AS daily_sales,
			(SELECT COUNT(*) FROM orders WHERE status IN ('pending', 'processing')) AS pending_orders,
			(SELECT COUNT(*) FROM products WHERE active AND stock < $2) AS low_stock,
			(SELECT COUNT(*) FROM users WHERE active AND role = 'customer') AS active_customers`

	var s Summary
	if err := r.db.GetContext(ctx, &s, query, dayStart, catalog.LowStockThreshold); err != nil {
		return nil, fmt.Errorf("repository: failed to load dashboard summary: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) Sales(ctx context.Context, since time.Time, bucket string) ([]SalesPoint, error) {
	query := `
		SELECT to_char(date_trunc($1, created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS bucket,
		       COALESCE(SUM(total), 0) AS total
		FROM orders
		WHERE status <> 'cancelled' AND created_at >= $2
		GROUP BY 1
		ORDER BY 1`

	points := make([]SalesPoint, 0)
	if err := r.db.SelectContext(ctx, &points, query, bucket, since); err != nil {
		return nil, fmt.Errorf("repository: failed to load sales: %w", err)
	}
	return points, nil
}

func (r *PostgresRepository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	query := `
		SELECT p.name AS name, SUM(oi.quantity) AS units
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.status <> 'cancelled'
		GROUP BY p.id, p.name
		ORDER BY units DESC, p.name
		LIMIT $1`

	top := make([]TopProduct, 0)
	if err := r.db.SelectContext(ctx, &top, query, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to load top products: %w", err)
	}
	return top, nil
}

func (r *PostgresRepository) RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error) {
	query := `
		SELECT o.id, u.username AS customer,
		       COALESCE(string_agg(p.name, ', ' ORDER BY oi.id), '') AS products,
		       o.total, o.status, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		LEFT JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN products p ON p.id = oi.product_id
		GROUP BY o.id, u.username
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $1`

	orders := make([]RecentOrder, 0)
	if err := r.db.SelectContext(ctx, &orders, query, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to load recent orders: %w", err)
	}
	return orders, nil
}
