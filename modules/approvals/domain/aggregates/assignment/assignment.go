package assignment

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is one approver's pending-or-recorded decision on a request.
// Decision is nil while pending; once set it is immutable.
type Assignment struct {
	ID                    uuid.UUID  `json:"id"`
	RequestID             uuid.UUID  `json:"request_id"`
	PolicyID              uuid.UUID  `json:"policy_id"`
	ApproverID            uuid.UUID  `json:"approver_id"`
	Decision              *bool      `json:"decision,omitempty"`
	DecisionJustification *string    `json:"decision_justification,omitempty"`
	DecisionAttachments   []string   `json:"decision_attachments,omitempty"`
	DecidedAt             *time.Time `json:"decided_at,omitempty"`
	Active                bool       `json:"active"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (a *Assignment) Decided() bool {
	return a.Decision != nil
}

func (a *Assignment) Approved() bool {
	return a.Decision != nil && *a.Decision
}

func (a *Assignment) Rejected() bool {
	return a.Decision != nil && !*a.Decision
}
