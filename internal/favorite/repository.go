package favorite

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

type Repository interface {
	List(ctx context.Context, userID int64) ([]Entry, error)
	Add(ctx context.Context, fav *Favorite) error
	Remove(ctx context.Context, userID, productID int64) error
	Exists(ctx context.Context, userID, productID int64) (bool, error)
}

type postgresRepository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &postgresRepository{db: conn}
}

func (r *postgresRepository) List(ctx context.Context, userID int64) ([]Entry, error) {
	query := `
		SELECT f.id, f.user_id, f.product_id, f.created_at,
		       p.name, p.price, p.image, p.stock, p.active
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query favorites: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.ProductID, &e.CreatedAt,
			&e.ProductName, &e.Price, &e.Image, &e.Stock, &e.ProductActive,
		); err != nil {
			return nil, fmt.Errorf("repository: failed to scan favorite: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating favorites: %w", err)
	}

	return entries, nil
}

func (r *postgresRepository) Add(ctx context.Context, fav *Favorite) error {
	query := `INSERT INTO favorites (user_id, product_id) VALUES ($1, $2) RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, fav.UserID, fav.ProductID).Scan(&fav.ID, &fav.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("%w: product %d is already a favorite", apperr.ErrConflict, fav.ProductID)
			case pgerrcode.ForeignKeyViolation:
				return fmt.Errorf("%w: product %d", apperr.ErrNotFound, fav.ProductID)
			}
		}
		return fmt.Errorf("repository: failed to insert favorite: %w", err)
	}

	return nil
}

func (r *postgresRepository) Remove(ctx context.Context, userID, productID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d is not a favorite", apperr.ErrNotFound, productID)
	}
	return nil
}

func (r *postgresRepository) Exists(ctx context.Context, userID, productID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)`,
		userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check favorite: %w", err)
	}
	return exists, nil
}
