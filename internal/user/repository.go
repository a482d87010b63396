package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByLogin matches the username or the email, case-insensitively.
	GetByLogin(ctx context.Context, login string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]User, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*User, error)
	Delete(ctx context.Context, id int64) error
	ExistsByRole(ctx context.Context, role Role) (bool, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const userColumns = `id, username, email, password_hash, role, active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash, u.Role, u.Active).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			field := "username"
			if strings.Contains(pgErr.ConstraintName, "email") {
				field = "email"
			}
			return fmt.Errorf("%w: %s is already registered", apperr.ErrConflict, field)
		}
		return fmt.Errorf("repository: failed to insert user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("repository: failed to select user %d: %w", id, err)
	}
	return u, nil
}

func (r *repository) GetByLogin(ctx context.Context, login string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1) LIMIT 1`

	u, err := scanUser(r.db.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %q", apperr.ErrNotFound, login)
		}
		return nil, fmt.Errorf("repository: failed to select user by login: %w", err)
	}
	return u, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan user: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating users: %w", err)
	}

	return users, nil
}

func (r *repository) Update(ctx context.Context, id int64, in UpdateInput) (*User, error) {
	var role *string
	if in.Role != nil {
		s := string(*in.Role)
		role = &s
	}

	query := `
		UPDATE users
		SET role = COALESCE($1, role), active = COALESCE($2, active), updated_at = now()
		WHERE id = $3
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, role, in.Active, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("repository: failed to update user %d: %w", id, err)
	}
	return u, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: user %d has orders", apperr.ErrConflict, id)
		}
		return fmt.Errorf("repository: failed to delete user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	return nil
}

func (r *repository) ExistsByRole(ctx context.Context, role Role) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`, role).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check users by role: %w", err)
	}
	return exists, nil
}
