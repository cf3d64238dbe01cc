// Package models holds the database row shapes. Mapping to and from domain
// entities lives next to the repositories.
package models

import (
	"time"

	"github.com/google/uuid"
)

type ApprovalPolicy struct {
	ID                   uuid.UUID
	ActionType           string
	Strategy             string
	ConfiguredApprovers  []uuid.UUID
	EscalationSector     *string
	EscalationPermission *string
	SelfApprovalRoles    []string
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type ApprovalRequest struct {
	ID               uuid.UUID
	Code             string
	ActionType       string
	RequesterID      uuid.UUID
	Justification    string
	Payload          []byte
	ExecutionMethod  string
	Status           string
	Credential       *string
	ApprovalDeadline *time.Time
	Attachments      []byte
	ProcessedAt      *time.Time
	ExecutedAt       *time.Time
	ExecutionError   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ApprovalAssignment struct {
	ID                    uuid.UUID
	RequestID             uuid.UUID
	PolicyID              uuid.UUID
	ApproverID            uuid.UUID
	Decision              *bool
	DecisionJustification *string
	DecisionAttachments   []string
	DecidedAt             *time.Time
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type ApprovalNotification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	RequestID   uuid.UUID
	Title       string
	Body        string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

type AuditLog struct {
	ID         uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Operation  string
	ActorID    uuid.UUID
	Before     []byte
	After      []byte
	CreatedAt  time.Time
}
