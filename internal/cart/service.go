package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

type Service interface {
	GetCart(ctx context.Context, userID int64) (View, error)
	Count(ctx context.Context, userID int64) (int, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*Item, error)
	// UpdateQuantity sets the line quantity. A quantity of zero or less removes
	// the line, in which case the returned item is nil.
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (*Item, error)
	RemoveItem(ctx context.Context, userID, itemID int64) error
	Deduplicate(ctx context.Context, userID int64) (int, error)
}

type service struct {
	repo     Repository
	products ProductReader
}

func NewService(repo Repository, products ProductReader) Service {
	return &service{repo: repo, products: products}
}

func (s *service) GetCart(ctx context.Context, userID int64) (View, error) {
	c, err := s.repo.ActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return NewView(0, nil), nil
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to load cart")
		return View{}, fmt.Errorf("service: failed to load cart: %w", err)
	}

	lines, err := s.repo.Lines(ctx, c.ID)
	if err != nil {
		log.Error().Err(err).Int64("cart_id", c.ID).Msg("service: failed to load cart lines")
		return View{}, fmt.Errorf("service: failed to load cart: %w", err)
	}

	return NewView(c.ID, lines), nil
}

func (s *service) Count(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountItems(ctx, userID)
}

func (s *service) AddItem(ctx context.Context, userID, productID int64, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", apperr.ErrInvalidInput)
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: product %d is not available", apperr.ErrNotFound, productID)
	}

	c, err := s.repo.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to get or create cart")
		return nil, fmt.Errorf("service: failed to add to cart: %w", err)
	}

	item, err := s.repo.AddOrMerge(ctx, c.ID, p.ID, quantity, p.Price, p.Stock)
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientStock) {
			log.Warn().Int64("user_id", userID).Int64("product_id", productID).Int("requested", quantity).Int("stock", p.Stock).
				Msg("service: add to cart exceeds stock")
			return nil, fmt.Errorf("%w: %s has %d units in stock", apperr.ErrInsufficientStock, p.Name, p.Stock)
		}
		log.Error().Err(err).Int64("cart_id", c.ID).Int64("product_id", productID).Msg("service: failed to add to cart")
		return nil, fmt.Errorf("service: failed to add to cart: %w", err)
	}

	return item, nil
}

// ownedItem returns the item only if it sits in userID's active cart.
func (s *service) ownedItem(ctx context.Context, userID, itemID int64) (*OwnedItem, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.OwnerID != userID || !it.CartActive {
		log.Warn().Int64("user_id", userID).Int64("item_id", itemID).Msg("service: cart item does not belong to user")
		return nil, fmt.Errorf("%w: cart item %d", apperr.ErrNotAuthorized, itemID)
	}
	return it, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (*Item, error) {
	it, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		if err := s.repo.DeleteItem(ctx, itemID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	p, err := s.products.GetProduct(ctx, it.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, fmt.Errorf("%w: %s has %d units in stock", apperr.ErrInsufficientStock, p.Name, p.Stock)
	}

	if err := s.repo.SetQuantity(ctx, itemID, quantity); err != nil {
		return nil, err
	}

	item := it.Item
	item.Quantity = quantity
	return &item, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID int64) error {
	if _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, itemID)
}

func (s *service) Deduplicate(ctx context.Context, userID int64) (int, error) {
	c, err := s.repo.ActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("service: failed to load cart: %w", err)
	}
	return s.repo.Deduplicate(ctx, c.ID)
}
