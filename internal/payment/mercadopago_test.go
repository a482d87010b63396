package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/payment"
)

func newClient(t *testing.T, handler http.HandlerFunc) *payment.MercadoPagoClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return payment.NewMercadoPagoClient(config.PaymentConfig{
		MercadoPagoBaseURL:     srv.URL,
		MercadoPagoAccessToken: "TEST-token",
		MercadoPagoPublicKey:   "TEST-public",
		Timeout:                2 * time.Second,
		Currency:               "USD",
	})
}

func TestMercadoPagoClient_CreatePaymentLink(t *testing.T) {
	var got map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp.example/pay/pref-1","sandbox_init_point":"https://sandbox.mp.example/pay/pref-1"}`))
	})

	link, err := client.CreatePaymentLink(context.Background(), payment.LinkRequest{
		Items:             []payment.Item{{Title: "Game A", Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")}},
		ReturnURLs:        payment.ReturnURLs{Success: "https://shop.example/ok"},
		ExternalReference: "0b9f6a4e-8f0e-4a53-9d3e-6a7d3f2c1b00",
	})
	require.NoError(t, err)

	assert.Equal(t, "pref-1", link.PreferenceID)
	assert.Equal(t, "https://mp.example/pay/pref-1", link.InitPoint)
	assert.Equal(t, "0b9f6a4e-8f0e-4a53-9d3e-6a7d3f2c1b00", got["external_reference"])
	assert.Equal(t, "approved", got["auto_return"])

	items := got["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, 10.5, item["unit_price"])
	assert.Equal(t, "USD", item["currency_id"])
	assert.Equal(t, "TEST-public", client.PublicKey())
}

func TestMercadoPagoClient_CreatePaymentLink_ProviderError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid access token","error":"unauthorized","status":401}`))
	})

	_, err := client.CreatePaymentLink(context.Background(), payment.LinkRequest{})
	require.ErrorIs(t, err, apperr.ErrProvider)
	assert.Contains(t, err.Error(), "invalid access token")
}

func TestMercadoPagoClient_GetPayment(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantStatus   string
		wantRef      string
		wantApproved bool
	}{
		{
			name:         "approved_with_reference",
			body:         `{"id":123456,"status":"approved","status_detail":"accredited","external_reference":"ref-1"}`,
			wantStatus:   "approved",
			wantRef:      "ref-1",
			wantApproved: true,
		},
		{
			name:         "collection_status_and_order_reference",
			body:         `{"id":123456,"collection_status":"APPROVED_BY_MERCHANT","order":{"external_reference":"ref-2"}}`,
			wantStatus:   "APPROVED_BY_MERCHANT",
			wantRef:      "ref-2",
			wantApproved: true,
		},
		{
			name:       "pending",
			body:       `{"id":123456,"status":"in_process"}`,
			wantStatus: "in_process",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/payments/123456", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			p, err := client.GetPayment(context.Background(), "123456")
			require.NoError(t, err)
			assert.Equal(t, "123456", p.ID)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantRef, p.ExternalReference)
			assert.Equal(t, tt.wantApproved, p.Approved())
		})
	}
}

func TestMercadoPagoClient_GetPayment_Unreachable(t *testing.T) {
	client := payment.NewMercadoPagoClient(config.PaymentConfig{
		MercadoPagoBaseURL: "http://127.0.0.1:1",
		Timeout:            200 * time.Millisecond,
	})

	_, err := client.GetPayment(context.Background(), "1")
	require.ErrorIs(t, err, apperr.ErrProvider)
}

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr bool
	}{
		{name: "nested_numeric", body: `{"data":{"id":987654},"type":"payment"}`, wantID: "987654"},
		{name: "nested_string", body: `{"data":{"id":"987654"},"type":"payment"}`, wantID: "987654"},
		{name: "flat", body: `{"id":"555","topic":"payment"}`, wantID: "555"},
		{name: "flat_numeric", body: `{"id":555}`, wantID: "555"},
		{name: "missing_id", body: `{"type":"payment"}`, wantID: ""},
		{name: "nested_without_id_falls_back", body: `{"data":{},"id":42}`, wantID: "42"},
		{name: "non_integer_id_ignored", body: `{"id":1.5}`, wantID: ""},
		{name: "malformed", body: `{"data":`, wantErr: true},
		{name: "array", body: `[1,2]`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := payment.ParseNotification([]byte(tt.body))
			if tt.wantErr {
				require.ErrorIs(t, err, apperr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
