package request

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusCancelled     Status = "CANCELLED"
	StatusExecuted      Status = "EXECUTED"
	StatusErrorExecuted Status = "ERROR_EXECUTED"
)

// Terminal reports whether no further decisions may land on the request.
// APPROVED still accepts the execution outcome transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExecuted, StatusErrorExecuted:
		return true
	}
	return false
}

// Critical action types gated behind the approval workflow. Execution
// dispatches on these.
const (
	ActionCancelBenefitRequest = "CANCEL_BENEFIT_REQUEST"
	ActionModifyCriticalData   = "MODIFY_CRITICAL_DATA"
	ActionDeleteRecord         = "DELETE_RECORD"
	ActionApprovePayment       = "APPROVE_PAYMENT"
	ActionTransferBenefit      = "TRANSFER_BENEFIT"
	ActionSuspendBenefit       = "SUSPEND_BENEFIT"
	ActionReactivateBenefit    = "REACTIVATE_BENEFIT"
	ActionChangeBenefitAmount  = "CHANGE_BENEFIT_AMOUNT"
)

// ActionPayload captures the originally requested operation so it can be
// replayed against the downstream API after approval.
type ActionPayload struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Params       map[string]string `json:"params,omitempty"`
	Query        map[string]string `json:"query,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         json.RawMessage   `json:"body,omitempty"`
	TargetItemID *string           `json:"target_item_id,omitempty"`
}

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Request is one instance of a critical action awaiting (or having
// undergone) approval. Created on submission, mutated only through status
// transitions, never deleted.
type Request struct {
	ID               uuid.UUID     `json:"id"`
	Code             string        `json:"code"`
	ActionType       string        `json:"action_type"`
	RequesterID      uuid.UUID     `json:"requester_id"`
	Justification    string        `json:"justification"`
	Payload          ActionPayload `json:"payload"`
	ExecutionMethod  string        `json:"execution_method"`
	Status           Status        `json:"status"`
	Credential       string        `json:"-"`
	ApprovalDeadline *time.Time    `json:"approval_deadline,omitempty"`
	Attachments      []Attachment  `json:"attachments,omitempty"`
	ProcessedAt      *time.Time    `json:"processed_at,omitempty"`
	ExecutedAt       *time.Time    `json:"executed_at,omitempty"`
	ExecutionError   *string       `json:"execution_error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCode generates the human-readable request token, e.g. APR-2026-7KQ2M9XC.
func NewCode(now time.Time) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable for token generation
		panic(err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return fmt.Sprintf("APR-%d-%s", now.Year(), string(b))
}

// DuplicateScope is the key the ledger guards submissions by: one PENDING
// request per requester+action, narrowed by the payload's target item when
// present.
func (r *Request) DuplicateScope() string {
	itemID := ""
	if r.Payload.TargetItemID != nil {
		itemID = *r.Payload.TargetItemID
	}
	return r.ActionType + "/" + itemID
}
