package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("approver assignment not found")

// Decision carries the fields recorded when an approver decides.
type Decision struct {
	Approved      bool
	Justification *string
	Attachments   []string
	DecidedAt     time.Time
}

type Repository interface {
	CreateMany(ctx context.Context, assignments []*Assignment) ([]*Assignment, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*Assignment, error)
	GetActiveByRequestAndApprover(ctx context.Context, requestID, approverID uuid.UUID) (*Assignment, error)
	// RecordDecision sets the decision exactly once: the update is
	// conditional on decision IS NULL and reports whether it applied.
	RecordDecision(ctx context.Context, id uuid.UUID, d Decision) (bool, error)
	ListPendingByApprover(ctx context.Context, approverID uuid.UUID) ([]*Assignment, error)
}
