package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
)

const (
	MinUsernameLength = 6
	MinPasswordLength = 8
)

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	// Authenticate checks credentials. Unknown logins, wrong passwords and
	// disabled accounts all fail with ErrUnauthenticated.
	Authenticate(ctx context.Context, login, password string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]User, error)
	// Create adds an account with any role from the back-office.
	Create(ctx context.Context, in CreateInput) (*User, error)
	Update(ctx context.Context, actorID, id int64, in UpdateInput) (*User, error)
	// Delete removes an account. Admins cannot delete themselves, and accounts
	// with orders are kept (disable them instead).
	Delete(ctx context.Context, actorID, id int64) error
	// EnsureAdmin creates the seed administrator unless an admin already exists.
	EnsureAdmin(ctx context.Context, username, email, password string) error
}

type service struct {
	repo     Repository
	validate *validator.Validate
	cost     int
}

func NewService(repo Repository) Service {
	return &service{repo: repo, validate: validator.New(), cost: bcrypt.DefaultCost}
}

// NewServiceWithCost is NewService with a custom bcrypt cost, used by tests.
func NewServiceWithCost(repo Repository, cost int) Service {
	return &service{repo: repo, validate: validator.New(), cost: cost}
}

func (s *service) validateCredentials(username, email, password string) error {
	switch {
	case len(username) < MinUsernameLength:
		return fmt.Errorf("%w: username must be at least %d characters", apperr.ErrInvalidInput, MinUsernameLength)
	case s.validate.Var(email, "required,email") != nil:
		return fmt.Errorf("%w: email is not valid", apperr.ErrInvalidInput)
	case len(password) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidInput, MinPasswordLength)
	}
	return nil
}

func (s *service) validateRegistration(in RegisterInput) error {
	if err := s.validateCredentials(in.Username, in.Email, in.Password); err != nil {
		return err
	}
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", apperr.ErrInvalidInput)
	}
	return nil
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validateRegistration(in); err != nil {
		return nil, err
	}

	return s.create(ctx, in.Username, in.Email, in.Password, RoleCustomer, true)
}

func (s *service) Create(ctx context.Context, in CreateInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = RoleCustomer
	}

	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidInput, in.Role)
	}
	if err := s.validateCredentials(in.Username, in.Email, in.Password); err != nil {
		return nil, err
	}

	return s.create(ctx, in.Username, in.Email, in.Password, in.Role, in.Active)
}

func (s *service) create(ctx context.Context, username, email, password string, role Role, active bool) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	u := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       active,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			log.Warn().Err(err).Str("username", username).Msg("service: registration conflict")
			return nil, err
		}
		log.Error().Err(err).Str("username", username).Msg("service: failed to create user")
		return nil, fmt.Errorf("service: failed to create user: %w", err)
	}

	log.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("service: user registered")
	return u, nil
}

func (s *service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, fmt.Errorf("%w: login and password are required", apperr.ErrUnauthenticated)
	}

	u, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
		}
		log.Error().Err(err).Msg("service: failed to load user for login")
		return nil, fmt.Errorf("service: failed to authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
	}

	if !u.Active {
		log.Warn().Int64("user_id", u.ID).Msg("service: login attempt on disabled account")
		return nil, fmt.Errorf("%w: account is disabled", apperr.ErrUnauthenticated)
	}

	return u, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]User, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return users, nil
}

func (s *service) Update(ctx context.Context, actorID, id int64, in UpdateInput) (*User, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidInput, *in.Role)
	}

	// An admin cannot lock themselves out of the back-office.
	if actorID == id {
		if (in.Role != nil && *in.Role != RoleAdmin) || (in.Active != nil && !*in.Active) {
			return nil, fmt.Errorf("%w: cannot demote or disable your own account", apperr.ErrInvalidInput)
		}
	}

	u, err := s.repo.Update(ctx, id, in)
	if err != nil {
		if !apperr.IsClientError(err) {
			log.Error().Err(err).Int64("user_id", id).Msg("service: failed to update user")
		}
		return nil, err
	}

	log.Info().Int64("user_id", id).Int64("actor_id", actorID).Str("role", string(u.Role)).Bool("active", u.Active).
		Msg("service: user updated")
	return u, nil
}

func (s *service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return fmt.Errorf("%w: cannot delete your own account", apperr.ErrInvalidInput)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !apperr.IsClientError(err) {
			log.Error().Err(err).Int64("user_id", id).Msg("service: failed to delete user")
		}
		return err
	}

	log.Info().Int64("user_id", id).Int64("actor_id", actorID).Msg("service: user deleted")
	return nil
}

func (s *service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	exists, err := s.repo.ExistsByRole(ctx, RoleAdmin)
	if err != nil {
		return fmt.Errorf("service: failed to check for admin: %w", err)
	}
	if exists {
		return nil
	}

	_, err = s.create(ctx, username, strings.ToLower(email), password, RoleAdmin, true)
	if errors.Is(err, apperr.ErrConflict) {
		log.Warn().Str("username", username).Msg("service: admin seed skipped, account name already taken")
		return nil
	}
	return err
}
