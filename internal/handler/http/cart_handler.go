package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/cart"
)

type AddCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartItemRequest allows zero, which removes the line.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{service: service, validate: validator.New()}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Get("/cart/count", h.handleCount)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{id}", h.handleUpdateItem)
	router.Delete("/cart/items/{id}", h.handleRemoveItem)
	router.Post("/cart/deduplicate", h.handleDeduplicate)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCart(r.Context(), principal(r).UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load cart")
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *CartHandler) handleCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Count(r.Context(), principal(r).UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to count cart items")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	item, err := h.service.AddItem(r.Context(), principal(r).UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to add item to cart")
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	item, err := h.service.UpdateQuantity(r.Context(), principal(r).UserID, itemID, *req.Quantity)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update cart item")
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), principal(r).UserID, itemID); err != nil {
		respondWithServiceError(w, r, err, "Failed to remove cart item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleDeduplicate(w http.ResponseWriter, r *http.Request) {
	merged, err := h.service.Deduplicate(r.Context(), principal(r).UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to deduplicate cart")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"merged": merged})
}
