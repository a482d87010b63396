package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
)

var ErrInvalidStatusTransition = fmt.Errorf("%w: invalid order status transition", apperr.ErrInvalidInput)

type Service interface {
	ListForUser(ctx context.Context, userID int64) ([]Order, error)
	// GetForUser returns an order only to its owner.
	GetForUser(ctx context.Context, userID, id int64) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	// UpdateStatus moves an order through the transition table. It never
	// touches stock, so it refuses to complete an order; completion goes
	// through checkout, which deducts stock.
	UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListForUser(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) GetForUser(ctx context.Context, userID, id int64) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: order %d", apperr.ErrNotAuthorized, id)
	}
	return o, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, filter.Status)
	}
	filter.Search = strings.TrimSpace(filter.Search)

	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, status)
	}

	var previous Status
	o, err := s.repo.Modify(ctx, id, func(o *Order) error {
		previous = o.Status
		if o.Status == status {
			return nil
		}
		// Completion deducts stock, which only checkout does.
		if status == StatusCompleted {
			return fmt.Errorf("%w: orders are completed through checkout", ErrInvalidStatusTransition)
		}
		if !o.Status.CanTransition(status) {
			log.Warn().
				Int64("order_id", o.ID).
				Stringer("current_status", o.Status).
				Stringer("new_status", status).
				Msg("service: invalid status transition attempt")
			return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, o.Status, status)
		}
		o.Status = status
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrInvalidInput) && !errors.Is(err, apperr.ErrNotFound) {
			log.Error().Err(err).Int64("order_id", id).Stringer("new_status", status).Msg("service: failed to update order status")
		}
		return nil, err
	}

	log.Info().Int64("order_id", id).Stringer("old_status", previous).Stringer("new_status", status).Msg("service: order status updated")
	return o, nil
}
