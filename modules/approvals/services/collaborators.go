package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/benefia/approvals/modules/approvals/domain/events"
)

// Transactor owns the transaction boundary around ledger operations. The
// pg implementation delegates to composables.InTx; tests substitute a
// pass-through so the state machine runs without a database.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher records one event per state transition. The pg
// implementation enqueues into the transactional outbox, so events commit
// with the transition and reach consumers after commit, at least once.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.RequestEvent) error
}

// NotificationDispatcher is fire-and-forget: failures are logged by callers
// and never abort a committed transition.
type NotificationDispatcher interface {
	Notify(ctx context.Context, recipientID uuid.UUID, title, body string, linkRequestID uuid.UUID) error
}

// AuditRecorder captures before/after snapshots at every state transition
// for compliance traceability. Failures are swallowed and logged.
type AuditRecorder interface {
	RecordCreate(ctx context.Context, entityType string, entityID uuid.UUID, after any, actorID uuid.UUID) error
	RecordUpdate(ctx context.Context, entityType string, entityID uuid.UUID, before, after any, actorID uuid.UUID) error
}

// ReplayRequest is the reconstructed downstream call.
type ReplayRequest struct {
	Method  string
	URL     string
	Query   map[string]string
	Headers map[string]string
	Body    []byte
	// Authorization carries the original caller's credential captured at
	// submission time.
	Authorization string
}

type ReplayResponse struct {
	StatusCode int
	Body       []byte
}

func (r *ReplayResponse) Success() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// DownstreamActionAPI forwards the replayed operation to the internal API
// that originally would have served it.
type DownstreamActionAPI interface {
	Do(ctx context.Context, req *ReplayRequest) (*ReplayResponse, error)
}
