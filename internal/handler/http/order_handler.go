package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/payment"
)

// OutcomeRecorder counts checkout and payment notification results.
type OutcomeRecorder interface {
	ObserveCheckout(flow, result string)
	ObserveWebhook(outcome string)
}

type CheckoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=paypal card mercadopago"`
	TransactionID string `json:"transaction_id" validate:"max=255"`
}

type CheckoutResponse struct {
	Success       bool             `json:"success"`
	OrderID       int64            `json:"order_id,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Error         string           `json:"error,omitempty"`
}

type ProviderCheckoutRequest struct {
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	FailureURL string `json:"failure_url" validate:"omitempty,url"`
	PendingURL string `json:"pending_url" validate:"omitempty,url"`
}

type ProviderCheckoutResponse struct {
	Success          bool            `json:"success"`
	OrderID          int64           `json:"order_id"`
	Reference        string          `json:"reference"`
	Total            decimal.Decimal `json:"total"`
	PreferenceID     string          `json:"preference_id"`
	InitPoint        string          `json:"init_point"`
	SandboxInitPoint string          `json:"sandbox_init_point,omitempty"`
}

type OrderHandler struct {
	orders    order.Service
	checkout  checkout.Service
	recorder  OutcomeRecorder
	publicURL string
	validate  *validator.Validate
}

// NewOrderHandler builds the customer order routes. publicURL is the external
// base URL used for provider return and notification URLs.
func NewOrderHandler(orders order.Service, checkoutSvc checkout.Service, recorder OutcomeRecorder, publicURL string) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		checkout:  checkoutSvc,
		recorder:  recorder,
		publicURL: strings.TrimRight(publicURL, "/"),
		validate:  validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/checkout", h.handleCheckout)
	router.Post("/orders/mercadopago", h.handleProviderCheckout)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "completed"
	case apperr.IsClientError(err):
		return "rejected"
	default:
		return "failed"
	}
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &req, true) {
		return
	}
	method := order.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = order.PaymentPayPal
	}

	o, err := h.checkout.ProcessOrder(r.Context(), principal(r).UserID, method, req.TransactionID)
	h.recorder.ObserveCheckout("immediate", checkoutResult(err))
	if err != nil {
		respondWithJSON(w, mapErrorToStatusCode(err), CheckoutResponse{
			Success: false,
			Error:   clientMessage(err, "Failed to process order"),
		})
		return
	}

	resp := CheckoutResponse{Success: true, OrderID: o.ID, Total: &o.Total}
	if o.TransactionID != nil {
		resp.TransactionID = *o.TransactionID
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleProviderCheckout(w http.ResponseWriter, r *http.Request) {
	var req ProviderCheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &req, true) {
		return
	}

	urls := payment.ReturnURLs{
		Success: firstNonEmpty(req.SuccessURL, h.publicURL+"/checkout/success"),
		Failure: firstNonEmpty(req.FailureURL, h.publicURL+"/checkout/failure"),
		Pending: firstNonEmpty(req.PendingURL, h.publicURL+"/checkout/pending"),
	}

	res, err := h.checkout.StartProviderCheckout(r.Context(), principal(r).UserID, urls, h.publicURL+"/api/mercadopago/webhook")
	result := checkoutResult(err)
	if err == nil {
		result = "pending"
	}
	h.recorder.ObserveCheckout("deferred", result)
	if err != nil {
		respondWithJSON(w, mapErrorToStatusCode(err), CheckoutResponse{
			Success: false,
			Error:   clientMessage(err, "Failed to create order"),
		})
		return
	}

	respondWithJSON(w, http.StatusCreated, ProviderCheckoutResponse{
		Success:          true,
		OrderID:          res.Order.ID,
		Reference:        res.Order.Reference.String(),
		Total:            res.Order.Total,
		PreferenceID:     res.Link.PreferenceID,
		InitPoint:        res.Link.InitPoint,
		SandboxInitPoint: res.Link.SandboxInitPoint,
	})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForUser(r.Context(), principal(r).UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.GetForUser(r.Context(), principal(r).UserID, id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
