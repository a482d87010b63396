package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether an order may move from s to next. Status
// never moves backwards and completed or cancelled orders are final.
func (s Status) CanTransition(next Status) bool {
	return allowedTransitions[s][next]
}

type PaymentMethod string

const (
	PaymentMercadoPago PaymentMethod = "mercadopago"
	PaymentPayPal      PaymentMethod = "paypal"
	PaymentCard        PaymentMethod = "card"
)

type Item struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name,omitempty" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Username  string    `json:"username,omitempty" db:"username"`
	Reference uuid.UUID `json:"reference" db:"reference"`
	// Total is fixed when the order is created and never recomputed.
	Total           decimal.Decimal `json:"total" db:"total"`
	Status          Status          `json:"status" db:"status"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	TransactionID   *string         `json:"transaction_id,omitempty" db:"provider_transaction_id"`
	ShippingAddress string          `json:"shipping_address,omitempty" db:"shipping_address"`
	Items           []Item          `json:"items" db:"-"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type ListFilter struct {
	Status Status
	Search string
	From   *time.Time
	To     *time.Time
}
