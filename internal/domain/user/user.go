// Package user holds the minimal read model of storefront accounts the order
// core needs: identity, role, and whether the account is active. Registration
// and authentication live upstream.
package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Role distinguishes regular customers from administrators.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ToRole parses a role string. Unknown values map to RoleCustomer so a
// malformed upstream claim can never grant elevated rights.
func ToRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// User is a storefront account.
type User struct {
	ID        uuid.UUID
	Name      string
	Role      Role
	Enabled   bool
	CreatedAt time.Time
}

// Repository defines read access to users.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
}
