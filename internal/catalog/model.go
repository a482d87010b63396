package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
)

// LowStockThreshold marks products the admin dashboard flags for restocking.
const LowStockThreshold = 10

type Category struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

type Product struct {
	ID           int64           `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Description  string          `json:"description" db:"description"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Stock        int             `json:"stock" db:"stock"`
	Image        string          `json:"image" db:"image"`
	CategoryID   int64           `json:"category_id" db:"category_id"`
	CategoryName string          `json:"category" db:"category_name"`
	Active       bool            `json:"active" db:"active"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductFilter narrows product listings. Zero values mean "no filter".
type ProductFilter struct {
	Search      string
	CategoryID  int64
	Active      *bool
	InStockOnly bool
}

// ApplyStockDelta returns p with delta added to its stock. It is the only place
// stock changes are computed: the result is never negative and a product that
// reaches zero is deactivated. It never re-enables a product.
func ApplyStockDelta(p Product, delta int) (Product, error) {
	next := p.Stock + delta
	if next < 0 {
		return p, fmt.Errorf("%w: %s has %d available, %d requested", apperr.ErrInsufficientStock, p.Name, p.Stock, -delta)
	}

	p.Stock = next
	if next == 0 {
		p.Active = false
	}

	return p, nil
}
