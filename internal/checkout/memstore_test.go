package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/payment"
)

var errInjected = errors.New("injected store failure")

// memState is an in-memory stand-in for the database.
type memState struct {
	products map[int64]catalog.Product
	carts    map[int64]cart.Cart
	items    map[int64][]cart.Item
	orders   map[int64]order.Order

	nextCartID  int64
	nextItemID  int64
	nextOrderID int64
}

func newMemState() *memState {
	return &memState{
		products: make(map[int64]catalog.Product),
		carts:    make(map[int64]cart.Cart),
		items:    make(map[int64][]cart.Item),
		orders:   make(map[int64]order.Order),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]cart.Item(nil), v...)
	}
	for k, v := range s.orders {
		v.Items = append([]order.Item(nil), v.Items...)
		c.orders[k] = v
	}
	c.nextCartID, c.nextItemID, c.nextOrderID = s.nextCartID, s.nextItemID, s.nextOrderID
	return c
}

func (s *memState) addProduct(id int64, name, price string, stock int) {
	s.products[id] = catalog.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: stock > 0,
	}
}

// addToCart appends a line to the user's active cart, creating the cart when needed.
func (s *memState) addToCart(userID, productID int64, quantity int) int64 {
	var cartID int64
	for id, c := range s.carts {
		if c.UserID == userID && c.Active {
			cartID = id
		}
	}
	if cartID == 0 {
		s.nextCartID++
		cartID = s.nextCartID
		s.carts[cartID] = cart.Cart{ID: cartID, UserID: userID, Active: true}
	}

	s.nextItemID++
	s.items[cartID] = append(s.items[cartID], cart.Item{
		ID:        s.nextItemID,
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: s.products[productID].Price,
	})
	return cartID
}

func (s *memState) activeCart(userID int64) (cart.Cart, bool) {
	for _, c := range s.carts {
		if c.UserID == userID && c.Active {
			return c, true
		}
	}
	return cart.Cart{}, false
}

// memRunner commits by keeping the mutated state and rolls back by restoring
// the snapshot taken when the transaction began.
type memRunner struct {
	mu    sync.Mutex
	state *memState

	failSaveStockFor int64
	lockOrder        []int64
	transactions     int
}

func (r *memRunner) InTx(ctx context.Context, fn func(st checkout.Store) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions++
	snapshot := r.state.clone()
	defer func() {
		if err != nil {
			r.state = snapshot
		}
	}()

	return fn(&memStore{runner: r})
}

type memStore struct {
	runner *memRunner
}

func (m *memStore) st() *memState { return m.runner.state }

func (m *memStore) ActiveCartForUpdate(_ context.Context, userID int64) (*cart.Cart, error) {
	c, ok := m.st().activeCart(userID)
	if !ok {
		return nil, fmt.Errorf("%w: no active cart", apperr.ErrNotFound)
	}
	return &c, nil
}

func (m *memStore) CartItems(_ context.Context, cartID int64) ([]cart.Item, error) {
	return append([]cart.Item{}, m.st().items[cartID]...), nil
}

func (m *memStore) DeactivateCart(_ context.Context, cartID int64) error {
	c := m.st().carts[cartID]
	c.Active = false
	m.st().carts[cartID] = c
	delete(m.st().items, cartID)
	return nil
}

func (m *memStore) ProductForUpdate(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := m.st().products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
	}
	m.runner.lockOrder = append(m.runner.lockOrder, id)
	return &p, nil
}

func (m *memStore) SaveStock(_ context.Context, p catalog.Product) error {
	if p.ID == m.runner.failSaveStockFor {
		return errInjected
	}
	if p.Stock < 0 {
		return fmt.Errorf("check constraint violated: stock %d", p.Stock)
	}
	if p.Stock == 0 && p.Active {
		return fmt.Errorf("check constraint violated: active without stock")
	}
	cur := m.st().products[p.ID]
	cur.Stock, cur.Active = p.Stock, p.Active
	m.st().products[p.ID] = cur
	return nil
}

func (m *memStore) CreateOrder(_ context.Context, o *order.Order) error {
	s := m.st()
	if o.TransactionID != nil {
		for _, existing := range s.orders {
			if existing.TransactionID != nil && *existing.TransactionID == *o.TransactionID && existing.PaymentMethod == o.PaymentMethod {
				return apperr.ErrConflict
			}
		}
	}
	s.nextOrderID++
	o.ID = s.nextOrderID
	if o.Reference == uuid.Nil {
		o.Reference = uuid.Must(uuid.NewV4())
	}
	for i := range o.Items {
		s.nextItemID++
		o.Items[i].ID = s.nextItemID
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = append([]order.Item(nil), o.Items...)
	s.orders[o.ID] = stored
	return nil
}

func (m *memStore) copyOrder(o order.Order) *order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	return &o
}

func (m *memStore) OrderForUpdate(_ context.Context, id int64) (*order.Order, error) {
	o, ok := m.st().orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", apperr.ErrNotFound, id)
	}
	return m.copyOrder(o), nil
}

func (m *memStore) OrderByReferenceForUpdate(_ context.Context, reference uuid.UUID) (*order.Order, error) {
	for _, o := range m.st().orders {
		if o.Reference == reference {
			return m.copyOrder(o), nil
		}
	}
	return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
}

func (m *memStore) OrderByTransactionForUpdate(_ context.Context, method order.PaymentMethod, transactionID string) (*order.Order, error) {
	for _, o := range m.st().orders {
		if o.PaymentMethod == method && o.TransactionID != nil && *o.TransactionID == transactionID {
			return m.copyOrder(o), nil
		}
	}
	return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
}

func (m *memStore) UpdateOrder(_ context.Context, o *order.Order) error {
	cur, ok := m.st().orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %d", apperr.ErrNotFound, o.ID)
	}
	cur.Status = o.Status
	cur.TransactionID = o.TransactionID
	m.st().orders[o.ID] = cur
	return nil
}

type fakeProvider struct {
	payments map[string]payment.Payment
	getErr   error
	linkErr  error
	linkReqs []payment.LinkRequest
}

func (f *fakeProvider) CreatePaymentLink(_ context.Context, req payment.LinkRequest) (*payment.Link, error) {
	f.linkReqs = append(f.linkReqs, req)
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return &payment.Link{PreferenceID: "pref-" + req.ExternalReference, InitPoint: "https://pay.example/" + req.ExternalReference}, nil
}

func (f *fakeProvider) GetPayment(_ context.Context, paymentID string) (*payment.Payment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", apperr.ErrProvider, paymentID)
	}
	return &p, nil
}
