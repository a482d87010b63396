package checkout

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
)

// Store is the set of reads and writes one checkout step performs. Every
// call made through a Store handed out by a TxRunner belongs to the same
// transaction, and the *ForUpdate reads hold row locks until it ends.
type Store interface {
	ActiveCartForUpdate(ctx context.Context, userID int64) (*cart.Cart, error)
	CartItems(ctx context.Context, cartID int64) ([]cart.Item, error)
	DeactivateCart(ctx context.Context, cartID int64) error

	ProductForUpdate(ctx context.Context, id int64) (*catalog.Product, error)
	SaveStock(ctx context.Context, p catalog.Product) error

	CreateOrder(ctx context.Context, o *order.Order) error
	OrderForUpdate(ctx context.Context, id int64) (*order.Order, error)
	OrderByReferenceForUpdate(ctx context.Context, reference uuid.UUID) (*order.Order, error)
	OrderByTransactionForUpdate(ctx context.Context, method order.PaymentMethod, transactionID string) (*order.Order, error)
	UpdateOrder(ctx context.Context, o *order.Order) error
}

// TxRunner runs fn in a transaction: committed when fn returns nil, rolled
// back entirely otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(st Store) error) error
}

type PostgresRunner struct {
	beginner db.TxBeginner
}

func NewPostgresRunner(beginner db.TxBeginner) *PostgresRunner {
	return &PostgresRunner{beginner: beginner}
}

func (r *PostgresRunner) InTx(ctx context.Context, fn func(st Store) error) error {
	return db.WithTx(ctx, r.beginner, func(tx pgx.Tx) error {
		return fn(&postgresStore{
			carts:    cart.NewRepository(tx),
			products: catalog.NewRepository(tx),
			orders:   order.NewRepository(tx),
		})
	})
}

type postgresStore struct {
	carts    cart.Repository
	products catalog.Repository
	orders   order.Repository
}

func (s *postgresStore) ActiveCartForUpdate(ctx context.Context, userID int64) (*cart.Cart, error) {
	return s.carts.ActiveCartForUpdate(ctx, userID)
}

func (s *postgresStore) CartItems(ctx context.Context, cartID int64) ([]cart.Item, error) {
	return s.carts.Items(ctx, cartID)
}

func (s *postgresStore) DeactivateCart(ctx context.Context, cartID int64) error {
	return s.carts.Deactivate(ctx, cartID)
}

func (s *postgresStore) ProductForUpdate(ctx context.Context, id int64) (*catalog.Product, error) {
	return s.products.GetProductForUpdate(ctx, id)
}

func (s *postgresStore) SaveStock(ctx context.Context, p catalog.Product) error {
	return s.products.SaveStock(ctx, p)
}

func (s *postgresStore) CreateOrder(ctx context.Context, o *order.Order) error {
	return s.orders.Create(ctx, o)
}

func (s *postgresStore) OrderForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return s.orders.GetForUpdate(ctx, id)
}

func (s *postgresStore) OrderByReferenceForUpdate(ctx context.Context, reference uuid.UUID) (*order.Order, error) {
	return s.orders.GetByReferenceForUpdate(ctx, reference)
}

func (s *postgresStore) OrderByTransactionForUpdate(ctx context.Context, method order.PaymentMethod, transactionID string) (*order.Order, error) {
	return s.orders.GetByTransactionForUpdate(ctx, method, transactionID)
}

func (s *postgresStore) UpdateOrder(ctx context.Context, o *order.Order) error {
	return s.orders.Update(ctx, o)
}
