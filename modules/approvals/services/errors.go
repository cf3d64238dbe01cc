package services

import (
	"github.com/benefia/approvals/pkg/serrors"
)

// Error taxonomy of the approval core. Sentinels compare with errors.Is;
// the controller maps codes onto HTTP statuses.
var (
	// ErrConfiguration: the policy is missing or malformed (e.g. an empty
	// approver set). Fatal for the operation, surfaced to the caller.
	ErrConfiguration = serrors.NewError("APPROVAL_CONFIGURATION", "approval policy is missing or malformed", "Approvals.Errors.Configuration")

	// ErrDuplicateRequest: an active PENDING request already covers the
	// same requester, action type and target item.
	ErrDuplicateRequest = serrors.NewError("APPROVAL_DUPLICATE_REQUEST", "a pending approval request already exists for this action", "Approvals.Errors.Duplicate")

	// ErrNotFound: the request or the approver assignment does not exist or
	// is inactive.
	ErrNotFound = serrors.NewError("APPROVAL_NOT_FOUND", "approval request or assignment not found", "Approvals.Errors.NotFound")

	// ErrInvalidState: the request is no longer PENDING — a concurrent
	// decider got there first or the client is stale.
	ErrInvalidState = serrors.NewError("APPROVAL_INVALID_STATE", "request is not pending", "Approvals.Errors.InvalidState")

	// ErrSelfApprovalForbidden: requesters may not decide their own
	// requests unless the policy strategy allows it.
	ErrSelfApprovalForbidden = serrors.NewError("APPROVAL_SELF_FORBIDDEN", "requester cannot decide own request", "Approvals.Errors.SelfApproval")

	// ErrAlreadyDecided: the assignment already carries a decision;
	// decisions are immutable.
	ErrAlreadyDecided = serrors.NewError("APPROVAL_ALREADY_DECIDED", "approver already decided on this request", "Approvals.Errors.AlreadyDecided")

	// ErrValidation: the stored action payload is missing fields the typed
	// execution handler needs.
	ErrValidation = serrors.NewError("APPROVAL_PAYLOAD_INVALID", "action payload failed validation", "Approvals.Errors.Validation")

	// ErrMissingAuthorization: no execution credential was captured at
	// submission time.
	ErrMissingAuthorization = serrors.NewError("APPROVAL_MISSING_AUTHORIZATION", "no execution credential stored for request", "Approvals.Errors.MissingAuthorization")

	// ErrExecution: the downstream replay failed (network error or non-2xx
	// response).
	ErrExecution = serrors.NewError("APPROVAL_EXECUTION_FAILED", "downstream execution failed", "Approvals.Errors.Execution")

	// ErrCancelForbidden: only the requester may cancel, and only while
	// PENDING.
	ErrCancelForbidden = serrors.NewError("APPROVAL_CANCEL_FORBIDDEN", "only the requester can cancel a pending request", "Approvals.Errors.CancelForbidden")
)
