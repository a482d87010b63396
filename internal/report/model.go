package report

import (
	"time"

	"github.com/shopspring/decimal"
)

type Summary struct {
	DailySales      decimal.Decimal `json:"daily_sales" db:"daily_sales"`
	PendingOrders   int             `json:"pending_orders" db:"pending_orders"`
	LowStock        int             `json:"low_stock" db:"low_stock"`
	ActiveCustomers int             `json:"active_customers" db:"active_customers"`
}

// Period selects the window and bucket size of the sales chart.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodWeek, PeriodYear:
		return Period(s)
	default:
		return PeriodMonth
	}
}

// SalesPoint is the revenue of one bucket. Bucket is formatted YYYY-MM-DD.
type SalesPoint struct {
	Bucket string          `db:"bucket"`
	Total  decimal.Decimal `db:"total"`
}

type Chart struct {
	Labels []string          `json:"labels"`
	Data   []decimal.Decimal `json:"data"`
}

type TopProduct struct {
	Name  string `json:"name" db:"name"`
	Units int64  `json:"units" db:"units"`
}

type RecentOrder struct {
	ID        int64           `json:"id" db:"id"`
	Customer  string          `json:"customer" db:"customer"`
	Products  string          `json:"products" db:"products"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
