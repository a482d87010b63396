package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

// OwnedItem is a cart line together with the owner and state of its cart.
type OwnedItem struct {
	Item
	OwnerID    int64
	CartActive bool
}

type Repository interface {
	ActiveCart(ctx context.Context, userID int64) (*Cart, error)
	// ActiveCartForUpdate locks the user's active cart row until the surrounding transaction ends.
	ActiveCartForUpdate(ctx context.Context, userID int64) (*Cart, error)
	GetOrCreateActiveCart(ctx context.Context, userID int64) (*Cart, error)
	Items(ctx context.Context, cartID int64) ([]Item, error)
	Lines(ctx context.Context, cartID int64) ([]Line, error)
	GetItem(ctx context.Context, itemID int64) (*OwnedItem, error)
	// AddOrMerge inserts a line or adds quantity to the existing line for the
	// product. It fails with ErrInsufficientStock, writing nothing, when the
	// resulting quantity would exceed maxQuantity.
	AddOrMerge(ctx context.Context, cartID, productID int64, quantity int, unitPrice decimal.Decimal, maxQuantity int) (*Item, error)
	SetQuantity(ctx context.Context, itemID int64, quantity int) error
	DeleteItem(ctx context.Context, itemID int64) error
	// Deduplicate folds lines that share a product into the oldest one and
	// reports how many lines were removed.
	Deduplicate(ctx context.Context, cartID int64) (int, error)
	// Deactivate deletes every line of the cart and marks it inactive.
	Deactivate(ctx context.Context, cartID int64) error
	CountItems(ctx context.Context, userID int64) (int, error)
}

type repository struct {
	db db.Conn
}

func NewRepository(conn db.Conn) Repository {
	return &repository{db: conn}
}

func (r *repository) activeCart(ctx context.Context, userID int64, forUpdate bool) (*Cart, error) {
	query := `SELECT id, user_id, active, created_at FROM carts WHERE user_id = $1 AND active`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var c Cart
	err := r.db.QueryRow(ctx, query, userID).Scan(&c.ID, &c.UserID, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no active cart for user %d", apperr.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("repository: failed to select active cart for user %d: %w", userID, err)
	}
	return &c, nil
}

func (r *repository) ActiveCart(ctx context.Context, userID int64) (*Cart, error) {
	return r.activeCart(ctx, userID, false)
}

func (r *repository) ActiveCartForUpdate(ctx context.Context, userID int64) (*Cart, error) {
	return r.activeCart(ctx, userID, true)
}

// GetOrCreateActiveCart relies on the one-active-cart-per-user partial index:
// concurrent callers race on the insert and both read back the same row.
func (r *repository) GetOrCreateActiveCart(ctx context.Context, userID int64) (*Cart, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO carts (user_id, active) VALUES ($1, TRUE) ON CONFLICT (user_id) WHERE active DO NOTHING`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create cart for user %d: %w", userID, err)
	}
	return r.activeCart(ctx, userID, false)
}

func (r *repository) Items(ctx context.Context, cartID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, cart_id, product_id, quantity, unit_price FROM cart_items WHERE cart_id = $1 ORDER BY id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items of cart %d: %w", cartID, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating items of cart %d: %w", cartID, err)
	}
	return items, nil
}

func (r *repository) Lines(ctx context.Context, cartID int64) ([]Line, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price,
		       p.name, p.image, p.price, p.stock, p.active
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`

	rows, err := r.db.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query lines of cart %d: %w", cartID, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var l Line
		err := rows.Scan(
			&l.ID,
			&l.CartID,
			&l.ProductID,
			&l.Quantity,
			&l.UnitPrice,
			&l.ProductName,
			&l.Image,
			&l.CurrentPrice,
			&l.Stock,
			&l.ProductActive,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating lines of cart %d: %w", cartID, err)
	}
	return lines, nil
}

func (r *repository) GetItem(ctx context.Context, itemID int64) (*OwnedItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price, c.user_id, c.active
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1
	`

	var it OwnedItem
	err := r.db.QueryRow(ctx, query, itemID).Scan(
		&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.OwnerID, &it.CartActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: cart item %d", apperr.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("repository: failed to select cart item %d: %w", itemID, err)
	}
	return &it, nil
}

func (r *repository) AddOrMerge(ctx context.Context, cartID, productID int64, quantity int, unitPrice decimal.Decimal, maxQuantity int) (*Item, error) {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
		SELECT $1::bigint, $2::bigint, $3::integer, $4::numeric
		WHERE $3::integer <= $5::integer
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity + EXCLUDED.quantity <= $5::integer
		RETURNING id, cart_id, product_id, quantity, unit_price
	`

	var it Item
	err := r.db.QueryRow(ctx, query, cartID, productID, quantity, unitPrice, maxQuantity).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: only %d units of product %d available", apperr.ErrInsufficientStock, maxQuantity, productID)
		}
		return nil, fmt.Errorf("repository: failed to add product %d to cart %d: %w", productID, cartID, err)
	}
	return &it, nil
}

func (r *repository) SetQuantity(ctx context.Context, itemID int64, quantity int) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE cart_items SET quantity = $1 WHERE id = $2`, quantity, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item %d: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart item %d", apperr.ErrNotFound, itemID)
	}
	return nil
}

func (r *repository) DeleteItem(ctx context.Context, itemID int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart item %d: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart item %d", apperr.ErrNotFound, itemID)
	}
	return nil
}

func (r *repository) Deduplicate(ctx context.Context, cartID int64) (int, error) {
	var removed int

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT product_id, min(id), sum(quantity)
			FROM cart_items
			WHERE cart_id = $1
			GROUP BY product_id
			HAVING count(*) > 1
		`, cartID)
		if err != nil {
			return fmt.Errorf("repository: failed to find duplicate lines in cart %d: %w", cartID, err)
		}

		type group struct {
			productID int64
			keepID    int64
			quantity  int
		}
		var groups []group
		for rows.Next() {
			var g group
			if err := rows.Scan(&g.productID, &g.keepID, &g.quantity); err != nil {
				rows.Close()
				return fmt.Errorf("repository: failed to scan duplicate group: %w", err)
			}
			groups = append(groups, g)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("repository: error iterating duplicate groups: %w", err)
		}

		for _, g := range groups {
			if _, err := tx.Exec(ctx, `UPDATE cart_items SET quantity = $1 WHERE id = $2`, g.quantity, g.keepID); err != nil {
				return fmt.Errorf("repository: failed to merge lines of product %d: %w", g.productID, err)
			}
			cmdTag, err := tx.Exec(ctx,
				`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND id <> $3`,
				cartID, g.productID, g.keepID)
			if err != nil {
				return fmt.Errorf("repository: failed to delete duplicate lines of product %d: %w", g.productID, err)
			}
			removed += int(cmdTag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		log.Info().Int64("cart_id", cartID).Int("removed", removed).Msg("repository: merged duplicate cart lines")
	}
	return removed, nil
}

func (r *repository) Deactivate(ctx context.Context, cartID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("repository: failed to clear cart %d: %w", cartID, err)
	}
	if _, err := r.db.Exec(ctx, `UPDATE carts SET active = FALSE WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("repository: failed to deactivate cart %d: %w", cartID, err)
	}
	return nil
}

func (r *repository) CountItems(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COALESCE(sum(ci.quantity), 0)
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		WHERE c.user_id = $1 AND c.active
	`

	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("repository: failed to count cart items for user %d: %w", userID, err)
	}
	return count, nil
}
