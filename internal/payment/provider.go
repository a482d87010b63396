// Package payment talks to the external payment provider.
package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

type Item struct {
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

type ReturnURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type LinkRequest struct {
	Items             []Item
	ReturnURLs        ReturnURLs
	ExternalReference string
	NotificationURL   string
}

type Link struct {
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

// Payment is the authoritative state of a payment as reported by the provider.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
}

// Approved reports whether the provider considers the payment settled.
func (p Payment) Approved() bool {
	switch strings.ToLower(strings.TrimSpace(p.Status)) {
	case "approved", "approved_by_merchant":
		return true
	}
	return false
}

// Provider is the narrow slice of the payment API the checkout depends on.
type Provider interface {
	CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}
