package favorite

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

type Service interface {
	List(ctx context.Context, userID int64) ([]Entry, error)
	Add(ctx context.Context, userID, productID int64) (*Favorite, error)
	Remove(ctx context.Context, userID, productID int64) error
	Check(ctx context.Context, userID, productID int64) (bool, error)
}

type service struct {
	repo     Repository
	products ProductReader
}

func NewService(repo Repository, products ProductReader) Service {
	return &service{repo: repo, products: products}
}

func (s *service) List(ctx context.Context, userID int64) ([]Entry, error) {
	return s.repo.List(ctx, userID)
}

func (s *service) Add(ctx context.Context, userID, productID int64) (*Favorite, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: product %d", apperr.ErrNotFound, productID)
	}

	fav := &Favorite{UserID: userID, ProductID: productID}
	if err := s.repo.Add(ctx, fav); err != nil {
		if !apperr.IsClientError(err) {
			log.Error().Err(err).Int64("user_id", userID).Int64("product_id", productID).Msg("service: failed to add favorite")
		}
		return nil, err
	}

	return fav, nil
}

func (s *service) Remove(ctx context.Context, userID, productID int64) error {
	return s.repo.Remove(ctx, userID, productID)
}

func (s *service) Check(ctx context.Context, userID, productID int64) (bool, error) {
	return s.repo.Exists(ctx, userID, productID)
}
