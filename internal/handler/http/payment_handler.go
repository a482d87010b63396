package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/payment"
)

type PaymentHandler struct {
	checkout  checkout.Service
	recorder  OutcomeRecorder
	publicKey string
}

func NewPaymentHandler(checkoutSvc checkout.Service, recorder OutcomeRecorder, publicKey string) *PaymentHandler {
	return &PaymentHandler{checkout: checkoutSvc, recorder: recorder, publicKey: publicKey}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Get("/mercadopago/config", h.handleConfig)
	router.Post("/mercadopago/webhook", h.handleWebhook)
}

func (h *PaymentHandler) handleConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

// handleWebhook acknowledges every well-formed notification with 200 so the
// provider stops retrying; failures are logged and a later replay settles them.
func (h *PaymentHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	paymentID, err := payment.ParseNotification(body)
	if err != nil {
		log.Warn().Err(err).Msg("payment notification rejected")
		h.recorder.ObserveWebhook("malformed")
		respondWithError(w, http.StatusBadRequest, "Invalid notification payload")
		return
	}

	if paymentID == "" {
		// Provider test pings and some topics carry the id in the query string.
		paymentID = firstNonEmpty(r.URL.Query().Get("data.id"), r.URL.Query().Get("id"))
	}
	if paymentID == "" {
		h.recorder.ObserveWebhook("ignored")
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "no payment id"})
		return
	}

	outcome, err := h.checkout.Reconcile(r.Context(), paymentID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).Msg("payment notification not settled")
		h.recorder.ObserveWebhook("error")
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	h.recorder.ObserveWebhook(string(outcome))
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "received", "outcome": string(outcome)})
}
