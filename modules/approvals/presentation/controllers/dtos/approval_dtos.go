package dtos

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
)

type SubmitRequestDTO struct {
	ActionType    string            `json:"action_type" validate:"required"`
	Justification string            `json:"justification" validate:"required,min=3"`
	URL           string            `json:"url" validate:"required"`
	Method        string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Params        map[string]string `json:"params,omitempty"`
	Query         map[string]string `json:"query,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          json.RawMessage   `json:"body,omitempty"`
	TargetItemID  *string           `json:"target_item_id,omitempty"`
	Deadline      *time.Time        `json:"approval_deadline,omitempty"`
	Attachments   []AttachmentDTO   `json:"attachments,omitempty" validate:"dive"`
}

type AttachmentDTO struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

type DecisionDTO struct {
	Approved      bool     `json:"approved"`
	Justification *string  `json:"justification,omitempty"`
	Attachments   []string `json:"attachments,omitempty" validate:"dive,url"`
}

type RequestResponse struct {
	ID               uuid.UUID             `json:"id"`
	Code             string                `json:"code"`
	ActionType       string                `json:"action_type"`
	RequesterID      uuid.UUID             `json:"requester_id"`
	Justification    string                `json:"justification"`
	Status           string                `json:"status"`
	ApprovalDeadline *time.Time            `json:"approval_deadline,omitempty"`
	ProcessedAt      *time.Time            `json:"processed_at,omitempty"`
	ExecutedAt       *time.Time            `json:"executed_at,omitempty"`
	ExecutionError   *string               `json:"execution_error,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	Assignments      []*AssignmentResponse `json:"assignments,omitempty"`
}

type AssignmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	ApproverID    uuid.UUID  `json:"approver_id"`
	Decision      *bool      `json:"decision,omitempty"`
	Justification *string    `json:"justification,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	Active        bool       `json:"active"`
}

type ListRequestsResponse struct {
	Items []*RequestResponse `json:"items"`
	Total int64              `json:"total"`
}

type RequirementResponse struct {
	ActionType       string `json:"action_type"`
	RequiresApproval bool   `json:"requires_approval"`
	Strategy         string `json:"strategy,omitempty"`
}

func NewRequestResponse(req *request.Request, assignments []*assignment.Assignment) *RequestResponse {
	resp := &RequestResponse{
		ID:               req.ID,
		Code:             req.Code,
		ActionType:       req.ActionType,
		RequesterID:      req.RequesterID,
		Justification:    req.Justification,
		Status:           string(req.Status),
		ApprovalDeadline: req.ApprovalDeadline,
		ProcessedAt:      req.ProcessedAt,
		ExecutedAt:       req.ExecutedAt,
		ExecutionError:   req.ExecutionError,
		CreatedAt:        req.CreatedAt,
	}
	for _, a := range assignments {
		resp.Assignments = append(resp.Assignments, &AssignmentResponse{
			ID:            a.ID,
			ApproverID:    a.ApproverID,
			Decision:      a.Decision,
			Justification: a.DecisionJustification,
			DecidedAt:     a.DecidedAt,
			Active:        a.Active,
		})
	}
	return resp
}

func (d *SubmitRequestDTO) ToPayload() request.ActionPayload {
	return request.ActionPayload{
		URL:          d.URL,
		Method:       d.Method,
		Params:       d.Params,
		Query:        d.Query,
		Headers:      d.Headers,
		Body:         d.Body,
		TargetItemID: d.TargetItemID,
	}
}

func (d *SubmitRequestDTO) ToAttachments() []request.Attachment {
	out := make([]request.Attachment, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		out = append(out, request.Attachment{Name: a.Name, URL: a.URL})
	}
	return out
}
