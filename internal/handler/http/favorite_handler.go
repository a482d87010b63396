package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/favorite"
)

type AddFavoriteRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

type FavoriteHandler struct {
	service  favorite.Service
	validate *validator.Validate
}

func NewFavoriteHandler(service favorite.Service) *FavoriteHandler {
	return &FavoriteHandler{service: service, validate: validator.New()}
}

func (h *FavoriteHandler) RegisterRoutes(router chi.Router) {
	router.Get("/favorites", h.handleList)
	router.Post("/favorites", h.handleAdd)
	router.Get("/favorites/{productID}", h.handleCheck)
	router.Delete("/favorites/{productID}", h.handleRemove)
}

func (h *FavoriteHandler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context(), principal(r).UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list favorites")
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *FavoriteHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddFavoriteRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	fav, err := h.service.Add(r.Context(), principal(r).UserID, req.ProductID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to add favorite")
		return
	}
	respondWithJSON(w, http.StatusCreated, fav)
}

func (h *FavoriteHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(w, r, "productID")
	if !ok {
		return
	}

	exists, err := h.service.Check(r.Context(), principal(r).UserID, productID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to check favorite")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"favorite": exists})
}

func (h *FavoriteHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(w, r, "productID")
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), principal(r).UserID, productID); err != nil {
		respondWithServiceError(w, r, err, "Failed to remove favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
