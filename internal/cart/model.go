package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Item is a cart line. UnitPrice is the product price captured when the line
// was first added; later price changes do not touch it.
type Item struct {
	ID        int64           `json:"id" db:"id"`
	CartID    int64           `json:"cart_id" db:"cart_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Line is an Item joined with the product fields the cart page shows.
type Line struct {
	Item
	ProductName   string          `json:"product_name" db:"product_name"`
	Image         string          `json:"image" db:"image"`
	CurrentPrice  decimal.Decimal `json:"current_price" db:"current_price"`
	Stock         int             `json:"stock" db:"stock"`
	ProductActive bool            `json:"product_active" db:"product_active"`
	LineTotal     decimal.Decimal `json:"line_total" db:"-"`
}

type View struct {
	CartID   int64           `json:"cart_id"`
	Lines    []Line          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Count    int             `json:"count"`
}

// NewView totals the lines using their snapshotted unit prices.
func NewView(cartID int64, lines []Line) View {
	v := View{CartID: cartID, Lines: lines, Subtotal: decimal.Zero}
	if v.Lines == nil {
		v.Lines = []Line{}
	}
	for i := range v.Lines {
		v.Lines[i].LineTotal = v.Lines[i].Subtotal()
		v.Subtotal = v.Subtotal.Add(v.Lines[i].LineTotal)
		v.Count += v.Lines[i].Quantity
	}
	return v
}

// Total sums the line subtotals.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
