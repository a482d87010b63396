package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

type Repository interface {
	// Create inserts the order and its items atomically and fills in the ids.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	GetByReferenceForUpdate(ctx context.Context, reference uuid.UUID) (*Order, error)
	GetByTransactionForUpdate(ctx context.Context, method PaymentMethod, transactionID string) (*Order, error)
	// Update persists status and transaction id.
	Update(ctx context.Context, o *Order) error
	// Modify locks the order, lets fn change it and persists the result in one
	// transaction. Returning an error from fn aborts without writing.
	Modify(ctx context.Context, id int64, fn func(o *Order) error) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
}

type postgresRepository struct {
	db db.Conn
}

func NewRepository(conn db.Conn) Repository {
	return &postgresRepository{db: conn}
}

const orderColumns = `
	o.id, o.user_id, COALESCE(u.username, ''), o.reference, o.total, o.status, o.payment_method,
	o.provider_transaction_id, o.shipping_address, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Username,
		&o.Reference,
		&o.Total,
		&o.Status,
		&o.PaymentMethod,
		&o.TransactionID,
		&o.ShippingAddress,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Items = make([]Item, 0)
	return &o, nil
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	if o.Reference == uuid.Nil {
		ref, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order reference: %w", err)
		}
		o.Reference = ref
	}

	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		queryOrder := `
			INSERT INTO orders (user_id, reference, total, status, payment_method, provider_transaction_id, shipping_address)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, queryOrder,
			o.UserID,
			o.Reference,
			o.Total,
			o.Status,
			o.PaymentMethod,
			o.TransactionID,
			o.ShippingAddress,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: transaction already recorded on another order", apperr.ErrConflict)
			}
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}

		queryItem := `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		for i := range o.Items {
			item := &o.Items[i]
			item.OrderID = o.ID
			if err := tx.QueryRow(ctx, queryItem, o.ID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&item.ID); err != nil {
				return fmt.Errorf("repository: failed to insert item for order %d: %w", o.ID, err)
			}
		}
		return nil
	})
}

func (r *postgresRepository) items(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.unit_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}
	return byOrder, nil
}

func (r *postgresRepository) getOne(ctx context.Context, where string, forUpdate bool, args ...any) (*Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE ` + where
	if forUpdate {
		query += " FOR UPDATE OF o"
	}

	o, err := scanOrder(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("repository: failed to select order: %w", err)
	}

	items, err := r.items(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	if its, ok := items[o.ID]; ok {
		o.Items = its
	}

	return o, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	return r.getOne(ctx, "o.id = $1", false, id)
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.getOne(ctx, "o.id = $1", true, id)
}

func (r *postgresRepository) GetByReferenceForUpdate(ctx context.Context, reference uuid.UUID) (*Order, error) {
	return r.getOne(ctx, "o.reference = $1", true, reference)
}

func (r *postgresRepository) GetByTransactionForUpdate(ctx context.Context, method PaymentMethod, transactionID string) (*Order, error) {
	return r.getOne(ctx, "o.payment_method = $1 AND o.provider_transaction_id = $2", true, method, transactionID)
}

func (r *postgresRepository) Update(ctx context.Context, o *Order) error {
	query := `
		UPDATE orders
		SET status = $1, provider_transaction_id = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, o.Status, o.TransactionID, o.ID).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: order %d", apperr.ErrNotFound, o.ID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: transaction already recorded on another order", apperr.ErrConflict)
		}
		log.Error().Err(err).Int64("order_id", o.ID).Str("status", o.Status.String()).Msg("repository: failed to update order")
		return fmt.Errorf("repository: failed to update order %d: %w", o.ID, err)
	}

	return nil
}

func (r *postgresRepository) Modify(ctx context.Context, id int64, fn func(o *Order) error) (*Order, error) {
	var modified *Order

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		txRepo := &postgresRepository{db: tx}

		o, err := txRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		if err := txRepo.Update(ctx, o); err != nil {
			return err
		}

		modified = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return modified, nil
}

func (r *postgresRepository) list(ctx context.Context, where []string, args []any, withItems bool) ([]Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.created_at DESC, o.id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if !withItems || len(ids) == 0 {
		return orders, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if its, ok := items[orders[i].ID]; ok {
			orders[i].Items = its
		}
	}

	return orders, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return r.list(ctx, []string{"o.user_id = $1"}, []any{userID}, true)
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(u.username ILIKE $%d OR u.email ILIKE $%d OR o.id::text = $%d)", len(args), len(args), len(args)+1))
		args = append(args, filter.Search)
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("o.created_at < $%d", len(args)))
	}

	return r.list(ctx, where, args, false)
}
