package http_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/auth"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/payment"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/user"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in user.RegisterInput) (*user.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, login, password string) (*user.User, error) {
	args := m.Called(ctx, login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context, filter user.ListFilter) ([]user.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, actorID, id int64, in user.UpdateInput) (*user.User, error) {
	args := m.Called(ctx, actorID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Create(ctx context.Context, in user.CreateInput) (*user.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, actorID, id int64) error {
	args := m.Called(ctx, actorID, id)
	return args.Error(0)
}

func (m *MockUserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	args := m.Called(ctx, username, email, password)
	return args.Error(0)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Start(ctx context.Context, userID int64) (auth.Session, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *MockSessionService) Resolve(ctx context.Context, token string) (auth.Principal, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(auth.Principal), args.Error(1)
}

func (m *MockSessionService) End(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetCart(ctx context.Context, userID int64) (cart.View, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(cart.View), args.Error(1)
}

func (m *MockCartService) Count(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*cart.Item, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Item), args.Error(1)
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (*cart.Item, error) {
	args := m.Called(ctx, userID, itemID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Item), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	args := m.Called(ctx, userID, itemID)
	return args.Error(0)
}

func (m *MockCartService) Deduplicate(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) ProcessOrder(ctx context.Context, userID int64, method order.PaymentMethod, transactionID string) (*order.Order, error) {
	args := m.Called(ctx, userID, method, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckoutService) CreatePendingOrder(ctx context.Context, userID int64, method order.PaymentMethod) (*order.Order, error) {
	args := m.Called(ctx, userID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckoutService) StartProviderCheckout(ctx context.Context, userID int64, urls payment.ReturnURLs, notificationURL string) (*checkout.ProviderCheckout, error) {
	args := m.Called(ctx, userID, urls, notificationURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.ProviderCheckout), args.Error(1)
}

func (m *MockCheckoutService) CompleteOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckoutService) Reconcile(ctx context.Context, paymentID string) (checkout.Outcome, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(checkout.Outcome), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) ListForUser(ctx context.Context, userID int64) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) GetForUser(ctx context.Context, userID, id int64) (*order.Order, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) List(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, id int64) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListCatalog(ctx context.Context, categoryID int64) ([]catalog.Product, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCatalogService) CreateCategory(ctx context.Context, name, description string) (*catalog.Category, error) {
	args := m.Called(ctx, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCatalogService) AdminListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) AdminGetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) CreateProduct(ctx context.Context, in catalog.CreateProductInput) (*catalog.Product, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) UpdateProduct(ctx context.Context, id int64, in catalog.UpdateProductInput) (*catalog.Product, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) SetProductActive(ctx context.Context, id int64, active bool) (*catalog.Product, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ProductNameTaken(ctx context.Context, name string, categoryID, excludeID int64) (bool, error) {
	args := m.Called(ctx, name, categoryID, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalogService) DeleteProduct(ctx context.Context, id int64) (catalog.DeleteOutcome, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(catalog.DeleteOutcome), args.Error(1)
}
