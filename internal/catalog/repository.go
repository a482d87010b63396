package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, category *Category) error

	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	// GetProductForUpdate locks the product row until the surrounding transaction ends.
	GetProductForUpdate(ctx context.Context, id int64) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) error
	// ModifyProduct locks the product, lets fn change it and persists the result
	// in one transaction. Returning an error from fn aborts without writing.
	ModifyProduct(ctx context.Context, id int64, fn func(p *Product) error) (*Product, error)
	SaveStock(ctx context.Context, p Product) error
	IsOrdered(ctx context.Context, id int64) (bool, error)
	DeleteProduct(ctx context.Context, id int64) error
	// NameTaken reports whether another product in the category already uses
	// name, ignoring case. excludeID skips the product being edited.
	NameTaken(ctx context.Context, name string, categoryID, excludeID int64) (bool, error)
}

type postgresRepository struct {
	db db.Conn
}

func NewRepository(conn db.Conn) Repository {
	return &postgresRepository{db: conn}
}

const productColumns = `
	p.id, p.name, p.description, p.price, p.stock, p.image, p.category_id,
	COALESCE(c.name, ''), p.active, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.Image,
		&p.CategoryID,
		&p.CategoryName,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, category *Category) error {
	query := `INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`

	err := r.db.QueryRow(ctx, query, category.Name, category.Description).Scan(&category.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: category %q already exists", apperr.ErrConflict, category.Name)
		}
		return fmt.Errorf("repository: failed to insert category: %w", err)
	}

	return nil
}

func (r *postgresRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("p.active = $%d", len(args)))
	}
	if filter.InStockOnly {
		conditions = append(conditions, "p.stock > 0")
	}

	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) getProduct(ctx context.Context, id int64, forUpdate bool) (*Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`
	if forUpdate {
		query += " FOR UPDATE OF p"
	}

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("repository: failed to select product %d: %w", id, err)
	}

	return p, nil
}

func (r *postgresRepository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return r.getProduct(ctx, id, false)
}

func (r *postgresRepository) GetProductForUpdate(ctx context.Context, id int64) (*Product, error) {
	return r.getProduct(ctx, id, true)
}

// productWriteError maps constraint violations on a product insert or update
// to domain errors. It returns nil for anything else.
func productWriteError(err error, p *Product) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: category %d", apperr.ErrNotFound, p.CategoryID)
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: a product named %q already exists in this category", apperr.ErrConflict, p.Name)
	}
	return nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, product *Product) error {
	query := `
		INSERT INTO products (name, description, price, stock, image, category_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		product.Stock,
		product.Image,
		product.CategoryID,
		product.Active,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if mapped := productWriteError(err, product); mapped != nil {
			return mapped
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	return nil
}

func (r *postgresRepository) ModifyProduct(ctx context.Context, id int64, fn func(p *Product) error) (*Product, error) {
	var updated *Product

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		txRepo := &postgresRepository{db: tx}

		p, err := txRepo.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := fn(p); err != nil {
			return err
		}

		query := `
			UPDATE products
			SET name = $1, description = $2, price = $3, stock = $4, image = $5,
			    category_id = $6, active = $7, updated_at = now()
			WHERE id = $8
			RETURNING updated_at
		`
		err = tx.QueryRow(ctx, query,
			p.Name,
			p.Description,
			p.Price,
			p.Stock,
			p.Image,
			p.CategoryID,
			p.Active,
			id,
		).Scan(&p.UpdatedAt)
		if err != nil {
			if mapped := productWriteError(err, p); mapped != nil {
				return mapped
			}
			return fmt.Errorf("repository: failed to update product %d: %w", id, err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *postgresRepository) SaveStock(ctx context.Context, p Product) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE products SET stock = $1, active = $2, updated_at = now() WHERE id = $3`,
		p.Stock, p.Active, p.ID)
	if err != nil {
		log.Error().Err(err).Int64("product_id", p.ID).Int("stock", p.Stock).Msg("repository: failed to save product stock")
		return fmt.Errorf("repository: failed to save stock for product %d: %w", p.ID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", apperr.ErrNotFound, p.ID)
	}

	return nil
}

func (r *postgresRepository) IsOrdered(ctx context.Context, id int64) (bool, error) {
	var ordered bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`, id).Scan(&ordered)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check orders for product %d: %w", id, err)
	}
	return ordered, nil
}

// DeleteProduct removes the product row. Cart lines and favorites go with it
// through ON DELETE CASCADE.
func (r *postgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: product %d is referenced by orders", apperr.ErrConflict, id)
		}
		return fmt.Errorf("repository: failed to delete product %d: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
	}

	return nil
}

func (r *postgresRepository) NameTaken(ctx context.Context, name string, categoryID, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM products
			WHERE category_id = $1 AND lower(name) = lower($2) AND id <> $3
		)`

	var taken bool
	if err := r.db.QueryRow(ctx, query, categoryID, name, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("repository: failed to check product name: %w", err)
	}
	return taken, nil
}
