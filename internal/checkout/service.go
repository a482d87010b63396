// Package checkout turns carts into orders and settles provider payments.
//
// Every multi-step mutation runs inside one TxRunner transaction, so stock,
// order status and cart state change together or not at all.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/payment"
)

// Outcome describes what a payment notification did.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeNotApproved      Outcome = "not_approved"
	OutcomeOrderNotFound    Outcome = "order_not_found"
	// OutcomeAwaitingStock: the payment is approved but stock ran out while
	// the order was pending. The order is moved to processing for follow-up.
	OutcomeAwaitingStock Outcome = "awaiting_stock"
)

type ProviderCheckout struct {
	Order *order.Order
	Link  *payment.Link
}

type Service interface {
	// ProcessOrder checks out the user's cart with a provider that confirms
	// immediately: the order is created completed, stock is deducted and the
	// cart is closed.
	ProcessOrder(ctx context.Context, userID int64, method order.PaymentMethod, transactionID string) (*order.Order, error)
	// CreatePendingOrder records a pending order for a provider that confirms
	// later. Stock and cart are left untouched.
	CreatePendingOrder(ctx context.Context, userID int64, method order.PaymentMethod) (*order.Order, error)
	// StartProviderCheckout creates a pending order and a payment link for it.
	StartProviderCheckout(ctx context.Context, userID int64, urls payment.ReturnURLs, notificationURL string) (*ProviderCheckout, error)
	// Reconcile settles the order a provider payment belongs to. Replays of the
	// same payment are no-ops once the order is completed.
	Reconcile(ctx context.Context, paymentID string) (Outcome, error)
	// CompleteOrder is the back-office completion of a pending or processing
	// order. Stock is deducted the same way a confirmed payment deducts it;
	// the customer's cart is left alone.
	CompleteOrder(ctx context.Context, orderID int64) (*order.Order, error)
}

type service struct {
	runner   TxRunner
	provider payment.Provider
}

func NewService(runner TxRunner, provider payment.Provider) Service {
	return &service{runner: runner, provider: provider}
}

func cartLines(items []cart.Item) []line {
	lines := make([]line, 0, len(items))
	for _, it := range items {
		lines = append(lines, line{productID: it.ProductID, quantity: it.Quantity})
	}
	return lines
}

func orderLines(items []order.Item) []line {
	lines := make([]line, 0, len(items))
	for _, it := range items {
		lines = append(lines, line{productID: it.ProductID, quantity: it.Quantity})
	}
	return lines
}

// placeOrder validates the active cart and writes the order and its items.
// Nothing is written unless every line passes.
func placeOrder(ctx context.Context, st Store, userID int64, method order.PaymentMethod, status order.Status, transactionID string) (*order.Order, *cart.Cart, map[int64]catalog.Product, error) {
	c, err := st.ActiveCartForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("%w: no active cart", apperr.ErrEmptyCart)
		}
		return nil, nil, nil, err
	}

	items, err := st.CartItems(ctx, c.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, nil, apperr.ErrEmptyCart
	}

	lines := cartLines(items)
	products, err := lockProducts(ctx, st, lines)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := validateStock(lines, products); err != nil {
		return nil, nil, nil, err
	}

	o := &order.Order{
		UserID:        userID,
		Total:         cart.Total(items),
		Status:        status,
		PaymentMethod: method,
		Items:         make([]order.Item, 0, len(items)),
	}
	if transactionID != "" {
		o.TransactionID = &transactionID
	}
	for _, it := range items {
		o.Items = append(o.Items, order.Item{
			ProductID:   it.ProductID,
			ProductName: products[it.ProductID].Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	if err := st.CreateOrder(ctx, o); err != nil {
		return nil, nil, nil, err
	}

	return o, c, products, nil
}

func (s *service) ProcessOrder(ctx context.Context, userID int64, method order.PaymentMethod, transactionID string) (*order.Order, error) {
	var placed *order.Order

	err := s.runner.InTx(ctx, func(st Store) error {
		o, c, products, err := placeOrder(ctx, st, userID, method, order.StatusCompleted, transactionID)
		if err != nil {
			return err
		}

		if err := deductStock(ctx, st, orderLines(o.Items), products); err != nil {
			return err
		}
		if err := st.DeactivateCart(ctx, c.ID); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		logCheckoutError(err, userID, "service: checkout failed")
		return nil, err
	}

	log.Info().Int64("order_id", placed.ID).Int64("user_id", userID).Str("payment_method", string(method)).
		Str("total", placed.Total.StringFixed(2)).Msg("service: order completed")
	return placed, nil
}

func (s *service) CreatePendingOrder(ctx context.Context, userID int64, method order.PaymentMethod) (*order.Order, error) {
	var placed *order.Order

	err := s.runner.InTx(ctx, func(st Store) error {
		o, _, _, err := placeOrder(ctx, st, userID, method, order.StatusPending, "")
		if err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		logCheckoutError(err, userID, "service: pending order failed")
		return nil, err
	}

	log.Info().Int64("order_id", placed.ID).Int64("user_id", userID).Stringer("reference", placed.Reference).
		Str("total", placed.Total.StringFixed(2)).Msg("service: pending order created")
	return placed, nil
}

func (s *service) StartProviderCheckout(ctx context.Context, userID int64, urls payment.ReturnURLs, notificationURL string) (*ProviderCheckout, error) {
	o, err := s.CreatePendingOrder(ctx, userID, order.PaymentMercadoPago)
	if err != nil {
		return nil, err
	}

	req := payment.LinkRequest{
		Items:             make([]payment.Item, 0, len(o.Items)),
		ReturnURLs:        urls,
		ExternalReference: o.Reference.String(),
		NotificationURL:   notificationURL,
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, payment.Item{Title: it.ProductName, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	link, err := s.provider.CreatePaymentLink(ctx, req)
	if err != nil {
		log.Error().Err(err).Int64("order_id", o.ID).Msg("service: payment link failed, cancelling pending order")
		if cancelErr := s.cancelPending(ctx, o.ID); cancelErr != nil {
			log.Error().Err(cancelErr).Int64("order_id", o.ID).Msg("service: failed to cancel pending order")
		}
		if !errors.Is(err, apperr.ErrProvider) {
			err = fmt.Errorf("%w: %v", apperr.ErrProvider, err)
		}
		return nil, err
	}

	return &ProviderCheckout{Order: o, Link: link}, nil
}

func (s *service) cancelPending(ctx context.Context, orderID int64) error {
	return s.runner.InTx(ctx, func(st Store) error {
		o, err := st.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return nil
		}
		o.Status = order.StatusCancelled
		return st.UpdateOrder(ctx, o)
	})
}

func (s *service) CompleteOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	var (
		completed *order.Order
		previous  order.Status
	)
	err := s.runner.InTx(ctx, func(st Store) error {
		o, err := st.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous = o.Status
		completed = o

		if o.Status == order.StatusCompleted {
			return nil
		}
		if !o.Status.CanTransition(order.StatusCompleted) {
			return fmt.Errorf("%w: from %s to %s", order.ErrInvalidStatusTransition, o.Status, order.StatusCompleted)
		}

		lines := orderLines(o.Items)
		products, err := lockProducts(ctx, st, lines)
		if err != nil {
			return err
		}
		if err := validateStock(lines, products); err != nil {
			return err
		}
		if err := deductStock(ctx, st, lines, products); err != nil {
			return err
		}

		o.Status = order.StatusCompleted
		return st.UpdateOrder(ctx, o)
	})
	if err != nil {
		if !apperr.IsClientError(err) {
			log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to complete order")
		}
		return nil, err
	}

	log.Info().Int64("order_id", orderID).Stringer("old_status", previous).Msg("service: order completed from back-office")
	return completed, nil
}

func (s *service) Reconcile(ctx context.Context, paymentID string) (Outcome, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return "", fmt.Errorf("%w: payment id is required", apperr.ErrInvalidInput)
	}

	p, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if !p.Approved() {
		log.Info().Str("payment_id", paymentID).Str("status", p.Status).Msg("service: payment not approved, nothing to do")
		return OutcomeNotApproved, nil
	}

	var (
		outcome Outcome
		orderID int64
	)
	err = s.runner.InTx(ctx, func(st Store) error {
		o, err := locateOrder(ctx, st, paymentID, p.ExternalReference)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				outcome = OutcomeOrderNotFound
				return nil
			}
			return err
		}
		orderID = o.ID

		// The status check runs on the locked row, so concurrent replays
		// serialize here and only the first one completes the order.
		if o.Status == order.StatusCompleted {
			outcome = OutcomeAlreadyCompleted
			return nil
		}
		if o.Status == order.StatusCancelled {
			// A captured payment outranks an earlier cancellation.
			log.Warn().Int64("order_id", o.ID).Str("payment_id", paymentID).
				Msg("service: approved payment for cancelled order, completing it")
		}

		if o.TransactionID == nil {
			o.TransactionID = &paymentID
		}

		// Cart before products: the same lock order ProcessOrder uses.
		c, err := st.ActiveCartForUpdate(ctx, o.UserID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		lines := orderLines(o.Items)
		products, err := lockProducts(ctx, st, lines)
		if err != nil {
			return err
		}

		if err := validateStock(lines, products); err != nil {
			if !errors.Is(err, apperr.ErrInsufficientStock) {
				return err
			}
			log.Warn().Err(err).Int64("order_id", o.ID).Str("payment_id", paymentID).
				Msg("service: approved payment for order without stock, holding for follow-up")
			o.Status = order.StatusProcessing
			outcome = OutcomeAwaitingStock
			return st.UpdateOrder(ctx, o)
		}

		if err := deductStock(ctx, st, lines, products); err != nil {
			return err
		}
		if c != nil {
			if err := st.DeactivateCart(ctx, c.ID); err != nil {
				return err
			}
		}

		o.Status = order.StatusCompleted
		outcome = OutcomeCompleted
		return st.UpdateOrder(ctx, o)
	})
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).Int64("order_id", orderID).Msg("service: payment reconciliation failed")
		return "", err
	}

	evt := log.Info()
	if outcome == OutcomeOrderNotFound {
		evt = log.Warn()
	}
	evt.Str("payment_id", paymentID).Int64("order_id", orderID).Str("external_reference", p.ExternalReference).
		Str("outcome", string(outcome)).Msg("service: payment reconciled")

	return outcome, nil
}

// locateOrder finds the order a payment settles: by the transaction id first,
// then by the external reference. References are order UUIDs; bare numeric
// order ids are still accepted for links created before references existed.
func locateOrder(ctx context.Context, st Store, paymentID, externalReference string) (*order.Order, error) {
	o, err := st.OrderByTransactionForUpdate(ctx, order.PaymentMercadoPago, paymentID)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return o, err
	}

	ref := strings.TrimSpace(externalReference)
	if ref == "" {
		return nil, fmt.Errorf("%w: no order for payment %s", apperr.ErrNotFound, paymentID)
	}

	if reference, parseErr := uuid.FromString(ref); parseErr == nil {
		return st.OrderByReferenceForUpdate(ctx, reference)
	}
	if id, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil && id > 0 {
		return st.OrderForUpdate(ctx, id)
	}

	return nil, fmt.Errorf("%w: unrecognised external reference %q", apperr.ErrNotFound, ref)
}

func logCheckoutError(err error, userID int64, msg string) {
	if apperr.IsClientError(err) {
		log.Warn().Err(err).Int64("user_id", userID).Msg(msg)
		return
	}
	log.Error().Err(err).Int64("user_id", userID).Msg(msg)
}
