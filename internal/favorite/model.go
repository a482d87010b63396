package favorite

import (
	"time"

	"github.com/shopspring/decimal"
)

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is a favorite joined with the product it points at.
type Entry struct {
	Favorite
	ProductName   string          `json:"product_name"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	Stock         int             `json:"stock"`
	ProductActive bool            `json:"product_active"`
}
