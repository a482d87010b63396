package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/config"
)

type MercadoPagoClient struct {
	client    *resty.Client
	currency  string
	publicKey string
}

func NewMercadoPagoClient(cfg config.PaymentConfig) *MercadoPagoClient {
	client := resty.New().
		SetBaseURL(cfg.MercadoPagoBaseURL).
		SetAuthToken(cfg.MercadoPagoAccessToken).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &MercadoPagoClient{client: client, currency: cfg.Currency, publicKey: cfg.MercadoPagoPublicKey}
}

// PublicKey is the key the browser checkout widget needs. It is safe to expose.
func (c *MercadoPagoClient) PublicKey() string {
	return c.publicKey
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	BackURLs          ReturnURLs       `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	ExternalReference string           `json:"external_reference,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	CollectionStatus  string      `json:"collection_status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	Order             *struct {
		ExternalReference string `json:"external_reference"`
	} `json:"order"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

func (c *MercadoPagoClient) CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error) {
	body := preferenceRequest{
		Items:             make([]preferenceItem, 0, len(req.Items)),
		BackURLs:          req.ReturnURLs,
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	}
	if req.ReturnURLs.Success != "" {
		body.AutoReturn = "approved"
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, preferenceItem{
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.InexactFloat64(),
			CurrencyID: c.currency,
		})
	}

	var (
		result preferenceResponse
		apiErr apiError
	)
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/checkout/preferences")
	if err != nil {
		log.Error().Err(err).Str("external_reference", req.ExternalReference).Msg("payment: preference request failed")
		return nil, fmt.Errorf("%w: create preference: %v", apperr.ErrProvider, err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Str("message", apiErr.Message).
			Str("external_reference", req.ExternalReference).Msg("payment: preference rejected")
		return nil, fmt.Errorf("%w: create preference: status %d: %s", apperr.ErrProvider, resp.StatusCode(), apiErr.Message)
	}
	if result.ID == "" || result.InitPoint == "" {
		return nil, fmt.Errorf("%w: create preference: response without id or init_point", apperr.ErrProvider)
	}

	log.Info().Str("preference_id", result.ID).Str("external_reference", req.ExternalReference).
		Dur("took", time.Since(start)).Msg("payment: preference created")

	return &Link{PreferenceID: result.ID, InitPoint: result.InitPoint, SandboxInitPoint: result.SandboxInitPoint}, nil
}

func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var (
		result paymentResponse
		apiErr apiError
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", paymentID).
		SetResult(&result).
		SetError(&apiErr).
		Get("/v1/payments/{id}")
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).Msg("payment: payment lookup failed")
		return nil, fmt.Errorf("%w: get payment %s: %v", apperr.ErrProvider, paymentID, err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Str("message", apiErr.Message).Str("payment_id", paymentID).
			Msg("payment: payment lookup rejected")
		return nil, fmt.Errorf("%w: get payment %s: status %d: %s", apperr.ErrProvider, paymentID, resp.StatusCode(), apiErr.Message)
	}

	p := &Payment{
		ID:                result.ID.String(),
		Status:            result.Status,
		StatusDetail:      result.StatusDetail,
		ExternalReference: result.ExternalReference,
	}
	if p.ID == "" {
		p.ID = paymentID
	}
	if p.Status == "" {
		p.Status = result.CollectionStatus
	}
	if p.ExternalReference == "" && result.Order != nil {
		p.ExternalReference = result.Order.ExternalReference
	}

	return p, nil
}

// ParseNotification extracts the payment id from a webhook body. Both the
// nested {"data":{"id":...},"type":"payment"} shape and the flat {"id":...}
// shape are accepted, with string or numeric ids. A well-formed body without
// an id yields an empty string and no error; only bodies that are not a JSON
// object fail.
func ParseNotification(body []byte) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: malformed notification: %v", apperr.ErrInvalidInput, err)
	}
	if payload == nil {
		return "", fmt.Errorf("%w: notification is not an object", apperr.ErrInvalidInput)
	}

	if raw, ok := payload["data"]; ok {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(raw, &data); err == nil {
			if id := idString(data["id"]); id != "" {
				return id, nil
			}
		}
	}

	return idString(payload["id"]), nil
}

func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return n.String()
		}
	}

	return ""
}
