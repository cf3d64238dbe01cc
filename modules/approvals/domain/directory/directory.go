package directory

import (
	"context"

	"github.com/google/uuid"
)

// User is the slice of the user directory this subsystem needs.
type User struct {
	ID       uuid.UUID `json:"id"`
	RoleCode string    `json:"role_code"`
	Active   bool      `json:"active"`
}

// Directory resolves approver candidates. Implemented over the shared user
// store; lookups here are read-only.
type Directory interface {
	UsersBySector(ctx context.Context, sectors []string) ([]User, error)
	UsersByPermission(ctx context.Context, permissions []string) ([]User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
}
