package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/report"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/user"
)

const dateLayout = "2006-01-02"

type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       *int             `json:"stock" validate:"required,gte=0"`
	Image       string           `json:"image"`
	CategoryID  int64            `json:"category_id" validate:"required,gt=0"`
	Active      *bool            `json:"active"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=200"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	Image       *string          `json:"image"`
	CategoryID  *int64           `json:"category_id" validate:"omitempty,gt=0"`
	Active      *bool            `json:"active"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing completed cancelled"`
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=6"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=admin customer"`
	Active   *bool  `json:"active"`
}

type UpdateUserRequest struct {
	Role   *string `json:"role" validate:"omitempty,oneof=admin customer"`
	Active *bool   `json:"active"`
}

type AdminHandler struct {
	catalog  catalog.Service
	orders   order.Service
	checkout checkout.Service
	users    user.Service
	reports  report.Service
	validate *validator.Validate
}

func NewAdminHandler(catalogSvc catalog.Service, orders order.Service, checkoutSvc checkout.Service, users user.Service, reports report.Service) *AdminHandler {
	return &AdminHandler{
		catalog:  catalogSvc,
		orders:   orders,
		checkout: checkoutSvc,
		users:    users,
		reports:  reports,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the back-office routes. The caller guards them with RequireAdmin.
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Post("/products", h.handleCreateProduct)
	router.Get("/products/name-taken", h.handleProductNameTaken)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Patch("/products/{id}/active", h.handleSetProductActive)
	router.Delete("/products/{id}", h.handleDeleteProduct)

	router.Get("/categories", h.handleListCategories)
	router.Post("/categories", h.handleCreateCategory)

	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Put("/orders/{id}/status", h.handleUpdateOrderStatus)

	router.Get("/users", h.handleListUsers)
	router.Post("/users", h.handleCreateUser)
	router.Patch("/users/{id}", h.handleUpdateUser)
	router.Delete("/users/{id}", h.handleDeleteUser)
	router.Get("/roles", h.handleListRoles)

	router.Get("/dashboard/summary", h.handleDashboardSummary)
	router.Get("/dashboard/sales", h.handleDashboardSales)
	router.Get("/dashboard/top-products", h.handleDashboardTopProducts)
	router.Get("/dashboard/recent-orders", h.handleDashboardRecentOrders)
}

func (h *AdminHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.ProductFilter{
		Search: q.Get("search"),
		Active: optionalBool(q.Get("active")),
	}
	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid category_id parameter")
			return
		}
		filter.CategoryID = id
	}

	products, err := h.catalog.AdminListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *AdminHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.catalog.AdminGetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), catalog.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
		Image:       req.Image,
		CategoryID:  req.CategoryID,
		Active:      req.Active,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), id, catalog.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
		CategoryID:  req.CategoryID,
		Active:      req.Active,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) handleSetProductActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req SetActiveRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	p, err := h.catalog.SetProductActive(r.Context(), id, *req.Active)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to change product state")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	outcome, err := h.catalog.DeleteProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to delete product")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

// queryInt64 parses an optional positive id from the query string. Empty
// means zero.
func queryInt64(raw string) (int64, bool) {
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *AdminHandler) handleProductNameTaken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	categoryID, ok := queryInt64(q.Get("category_id"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid category_id parameter")
		return
	}
	excludeID, ok := queryInt64(q.Get("exclude_id"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid exclude_id parameter")
		return
	}

	taken, err := h.catalog.ProductNameTaken(r.Context(), q.Get("name"), categoryID, excludeID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to check product name")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"exists": taken})
}

func (h *AdminHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *AdminHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	c, err := h.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create category")
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

// parseDate parses YYYY-MM-DD. An empty value yields nil.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *AdminHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseDate(q.Get("from"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
		return
	}
	if to != nil {
		// The end date is inclusive.
		next := to.AddDate(0, 0, 1)
		to = &next
	}

	orders, err := h.orders.List(r.Context(), order.ListFilter{
		Status: order.Status(q.Get("status")),
		Search: q.Get("search"),
		From:   from,
		To:     to,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	var (
		o   *order.Order
		err error
	)
	if order.Status(req.Status) == order.StatusCompleted {
		o, err = h.checkout.CompleteOrder(r.Context(), id)
	} else {
		o, err = h.orders.UpdateStatus(r.Context(), id, order.Status(req.Status))
	}
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	users, err := h.users.List(r.Context(), user.ListFilter{
		Search: q.Get("search"),
		Active: optionalBool(q.Get("active")),
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list users")
		return
	}
	respondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	in := user.UpdateInput{Active: req.Active}
	if req.Role != nil {
		role := user.Role(*req.Role)
		in.Role = &role
	}

	u, err := h.users.Update(r.Context(), principal(r).UserID, id, in)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update user")
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	in := user.CreateInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     user.Role(req.Role),
		Active:   true,
	}
	if req.Active != nil {
		in.Active = *req.Active
	}

	u, err := h.users.Create(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create user")
		return
	}
	respondWithJSON(w, http.StatusCreated, u)
}

func (h *AdminHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), principal(r).UserID, id); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, user.Roles)
}

func (h *AdminHandler) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load summary")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *AdminHandler) handleDashboardSales(w http.ResponseWriter, r *http.Request) {
	chart, err := h.reports.Sales(r.Context(), report.ParsePeriod(r.URL.Query().Get("period")))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load sales")
		return
	}
	respondWithJSON(w, http.StatusOK, chart)
}

func (h *AdminHandler) handleDashboardTopProducts(w http.ResponseWriter, r *http.Request) {
	top, err := h.reports.TopProducts(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load top products")
		return
	}
	respondWithJSON(w, http.StatusOK, top)
}

func (h *AdminHandler) handleDashboardRecentOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.reports.RecentOrders(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load recent orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}
