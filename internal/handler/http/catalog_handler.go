package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
)

type CatalogHandler struct {
	service catalog.Service
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/categories", h.handleListCategories)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid category_id parameter")
			return
		}
		categoryID = id
	}

	products, err := h.service.ListCatalog(r.Context(), categoryID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}
