package user

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Roles lists every role an account can hold.
var Roles = []Role{RoleAdmin, RoleCustomer}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type ListFilter struct {
	Search string
	Active *bool
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// CreateInput is an account created from the back-office.
type CreateInput struct {
	Username string
	Email    string
	Password string
	Role     Role
	Active   bool
}

// UpdateInput is an admin change to an account; nil fields stay as they are.
type UpdateInput struct {
	Role   *Role
	Active *bool
}
