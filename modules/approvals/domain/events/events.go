package events

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
)

// Topics emitted by the ledger and the executor, one per transition.
// Delivery is at-least-once; consumers must be idempotent.
const (
	TopicRequestCreated        = "request.created"
	TopicRequestApproved       = "request.approved"
	TopicRequestRejected       = "request.rejected"
	TopicRequestExecuted       = "request.executed"
	TopicRequestErrorExecution = "request.error_execution"
	TopicRequestCancelled      = "request.cancelled"
)

// RequestEvent is the payload carried by every topic: the full request
// snapshot plus the approver sets consumers need for fan-out.
type RequestEvent struct {
	Topic              string           `json:"topic"`
	Request            *request.Request `json:"request"`
	ApproverIDs        []uuid.UUID      `json:"approver_ids,omitempty"`
	UndecidedApprovers []uuid.UUID      `json:"undecided_approvers,omitempty"`
}

func (e *RequestEvent) Marshal() (json.RawMessage, error) {
	return json.Marshal(e)
}

func Unmarshal(payload json.RawMessage) (*RequestEvent, error) {
	var e RequestEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
