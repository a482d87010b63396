package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

type Session struct {
	Token     uuid.UUID
	UserID    int64
	ExpiresAt time.Time
}

type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	// Principal returns the owner of an unexpired session whose account is active.
	Principal(ctx context.Context, token uuid.UUID, now time.Time) (Principal, error)
	Delete(ctx context.Context, token uuid.UUID) error
	DeleteExpired(ctx context.Context, userID int64, now time.Time) error
}

type sessionRepository struct {
	db db.DBTX
}

func NewSessionRepository(conn db.DBTX) SessionRepository {
	return &sessionRepository{db: conn}
}

func (r *sessionRepository) Create(ctx context.Context, s Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		s.Token, s.UserID, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Principal(ctx context.Context, token uuid.UUID, now time.Time) (Principal, error) {
	query := `
		SELECT u.id, u.username, u.role
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > $2 AND u.active
	`

	var p Principal
	err := r.db.QueryRow(ctx, query, token, now).Scan(&p.UserID, &p.Username, &p.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, fmt.Errorf("%w: session expired or unknown", apperr.ErrUnauthenticated)
		}
		return Principal{}, fmt.Errorf("repository: failed to resolve session: %w", err)
	}
	return p, nil
}

func (r *sessionRepository) Delete(ctx context.Context, token uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("repository: failed to delete session: %w", err)
	}
	return nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, userID int64, now time.Time) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND expires_at <= $2`, userID, now); err != nil {
		return fmt.Errorf("repository: failed to delete expired sessions: %w", err)
	}
	return nil
}

type SessionService interface {
	Start(ctx context.Context, userID int64) (Session, error)
	Resolve(ctx context.Context, token string) (Principal, error)
	End(ctx context.Context, token string) error
}

type sessionService struct {
	repo SessionRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewSessionService(repo SessionRepository, ttl time.Duration) SessionService {
	return &sessionService{repo: repo, ttl: ttl, now: time.Now}
}

func (s *sessionService) Start(ctx context.Context, userID int64) (Session, error) {
	token, err := uuid.NewV4()
	if err != nil {
		return Session{}, fmt.Errorf("service: failed to generate session token: %w", err)
	}

	now := s.now()
	if err := s.repo.DeleteExpired(ctx, userID, now); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("service: failed to purge expired sessions")
	}

	session := Session{Token: token, UserID: userID, ExpiresAt: now.Add(s.ttl)}
	if err := s.repo.Create(ctx, session); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to create session")
		return Session{}, fmt.Errorf("service: failed to start session: %w", err)
	}

	return session, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (Principal, error) {
	parsed, err := uuid.FromString(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: malformed session token", apperr.ErrUnauthenticated)
	}
	return s.repo.Principal(ctx, parsed, s.now())
}

func (s *sessionService) End(ctx context.Context, token string) error {
	parsed, err := uuid.FromString(token)
	if err != nil {
		return nil
	}
	return s.repo.Delete(ctx, parsed)
}
