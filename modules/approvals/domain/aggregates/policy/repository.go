package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("approval policy not found")

type Repository interface {
	GetActiveByActionType(ctx context.Context, actionType string) (*Policy, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Policy, error)
}
