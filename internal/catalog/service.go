package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
)

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Image       string
	CategoryID  int64
	Active      *bool
}

// UpdateProductInput is a partial update; nil fields are left unchanged.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Image       *string
	CategoryID  *int64
	Active      *bool
}

type DeleteOutcome string

const (
	Deleted  DeleteOutcome = "deleted"
	Disabled DeleteOutcome = "disabled"
)

type Service interface {
	ListCatalog(ctx context.Context, categoryID int64) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreateCategory(ctx context.Context, name, description string) (*Category, error)
	AdminListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	AdminGetProduct(ctx context.Context, id int64) (*Product, error)
	CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, in UpdateProductInput) (*Product, error)
	SetProductActive(ctx context.Context, id int64, active bool) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) (DeleteOutcome, error)
	// ProductNameTaken lets the back-office warn about a duplicate before saving.
	ProductNameTaken(ctx context.Context, name string, categoryID, excludeID int64) (bool, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListCatalog(ctx context.Context, categoryID int64) ([]Product, error) {
	active := true
	products, err := s.repo.ListProducts(ctx, ProductFilter{CategoryID: categoryID, Active: &active, InStockOnly: true})
	if err != nil {
		log.Error().Err(err).Int64("category_id", categoryID).Msg("service: failed to list catalog")
		return nil, fmt.Errorf("service: failed to list catalog: %w", err)
	}
	return products, nil
}

// GetProduct hides inactive products from customers.
func (s *service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
	}
	return p, nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *service) CreateCategory(ctx context.Context, name, description string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", apperr.ErrInvalidInput)
	}

	c := &Category{Name: name, Description: strings.TrimSpace(description)}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if !apperr.IsClientError(err) {
			log.Error().Err(err).Str("name", name).Msg("service: failed to create category")
		}
		return nil, err
	}

	log.Info().Int64("category_id", c.ID).Str("name", c.Name).Msg("service: category created")
	return c, nil
}

func (s *service) AdminListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListProducts(ctx, filter)
}

func (s *service) AdminGetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func validateProduct(p *Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: product name is required", apperr.ErrInvalidInput)
	case !p.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than zero", apperr.ErrInvalidInput)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", apperr.ErrInvalidInput)
	case p.CategoryID <= 0:
		return fmt.Errorf("%w: category is required", apperr.ErrInvalidInput)
	case p.Active && p.Stock == 0:
		return fmt.Errorf("%w: a product without stock cannot be active", apperr.ErrInvalidInput)
	}
	return nil
}

func (s *service) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	p := &Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Image:       strings.TrimSpace(in.Image),
		CategoryID:  in.CategoryID,
		Active:      in.Stock > 0,
	}
	if in.Active != nil && !*in.Active {
		p.Active = false
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if !apperr.IsClientError(err) {
			log.Error().Err(err).Str("name", p.Name).Msg("service: failed to create product")
		}
		return nil, err
	}

	log.Info().Int64("product_id", p.ID).Int("stock", p.Stock).Bool("active", p.Active).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, id int64, in UpdateProductInput) (*Product, error) {
	p, err := s.repo.ModifyProduct(ctx, id, func(p *Product) error {
		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			p.Description = strings.TrimSpace(*in.Description)
		}
		if in.Price != nil {
			p.Price = *in.Price
		}
		if in.Image != nil {
			p.Image = strings.TrimSpace(*in.Image)
		}
		if in.CategoryID != nil {
			p.CategoryID = *in.CategoryID
		}

		if in.Stock != nil {
			if *in.Stock < 0 {
				return fmt.Errorf("%w: stock cannot be negative", apperr.ErrInvalidInput)
			}

			wasEmpty := p.Stock == 0
			next, err := ApplyStockDelta(*p, *in.Stock-p.Stock)
			if err != nil {
				return err
			}
			// Restocking an empty product puts it back on sale. This is an
			// admin decision; ApplyStockDelta alone never re-enables.
			if wasEmpty && next.Stock > 0 {
				next.Active = true
			}
			*p = next
		}

		if in.Active != nil {
			p.Active = *in.Active
		}

		return validateProduct(p)
	})
	if err != nil {
		if !apperr.IsClientError(err) {
			log.Error().Err(err).Int64("product_id", id).Msg("service: failed to update product")
		}
		return nil, err
	}

	log.Info().Int64("product_id", id).Int("stock", p.Stock).Bool("active", p.Active).Msg("service: product updated")
	return p, nil
}

func (s *service) SetProductActive(ctx context.Context, id int64, active bool) (*Product, error) {
	return s.UpdateProduct(ctx, id, UpdateProductInput{Active: &active})
}

// DeleteProduct hard-deletes a product that was never ordered. Products that
// appear on any order are only disabled so order history stays intact.
func (s *service) DeleteProduct(ctx context.Context, id int64) (DeleteOutcome, error) {
	ordered, err := s.repo.IsOrdered(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("product_id", id).Msg("service: failed to check product orders")
		return "", fmt.Errorf("service: failed to delete product: %w", err)
	}

	if !ordered {
		err = s.repo.DeleteProduct(ctx, id)
		if err == nil {
			log.Info().Int64("product_id", id).Msg("service: product deleted")
			return Deleted, nil
		}
		// An order may have referenced it since the check; fall back to disabling.
		if !errors.Is(err, apperr.ErrConflict) {
			if !apperr.IsClientError(err) {
				log.Error().Err(err).Int64("product_id", id).Msg("service: failed to delete product")
			}
			return "", err
		}
	}

	if _, err := s.SetProductActive(ctx, id, false); err != nil {
		return "", err
	}

	log.Info().Int64("product_id", id).Msg("service: product referenced by orders, disabled instead of deleted")
	return Disabled, nil
}

func (s *service) ProductNameTaken(ctx context.Context, name string, categoryID, excludeID int64) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || categoryID <= 0 {
		return false, nil
	}

	taken, err := s.repo.NameTaken(ctx, name, categoryID, excludeID)
	if err != nil {
		log.Error().Err(err).Int64("category_id", categoryID).Msg("service: failed to check product name")
		return false, fmt.Errorf("service: failed to check product name: %w", err)
	}
	return taken, nil
}
