package request

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("approval request not found")

type FindParams struct {
	Status     Status
	ActionType string
	Requester  uuid.UUID
	Limit      int
	Offset     int
}

type Repository interface {
	Create(ctx context.Context, r *Request) (*Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// GetByIDForUpdate locks the request row for the remainder of the
	// ambient transaction, serializing concurrent deciders.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	GetByCode(ctx context.Context, code string) (*Request, error)
	// ExistsPendingInScope reports whether an active PENDING request exists
	// for the requester with the same duplicate scope (action type +
	// optional target item id).
	ExistsPendingInScope(ctx context.Context, requesterID uuid.UUID, actionType string, targetItemID *string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, processedAt time.Time) (*Request, error)
	MarkExecuted(ctx context.Context, id uuid.UUID, executedAt time.Time) (*Request, error)
	MarkExecutionError(ctx context.Context, id uuid.UUID, executedAt time.Time, message string) (*Request, error)
	List(ctx context.Context, params *FindParams) ([]*Request, int64, error)
}
