package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/policy"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
	"github.com/benefia/approvals/modules/approvals/domain/events"
)

const requestEntityType = "approval_request"

// Executor performs the approved side effect and records the outcome. It
// runs outside the approval transaction: by the time it is invoked the
// APPROVED transition is already durable.
type Executor interface {
	Execute(ctx context.Context, req *request.Request) (*request.Request, error)
}

// SubmitParams is everything captured at interception time.
type SubmitParams struct {
	ActionType       string
	RequesterID      uuid.UUID
	Justification    string
	Payload          request.ActionPayload
	Credential       string
	ApprovalDeadline *time.Time
	Attachments      []request.Attachment
}

// RequestService is the ledger: it owns every status transition of an
// approval request and is the only writer of the request and assignment
// tables.
type RequestService struct {
	tx          Transactor
	policies    policy.Repository
	requests    request.Repository
	assignments assignment.Repository
	assigners   *AssignerFactory
	publisher   EventPublisher
	audit       AuditRecorder
	executor    Executor
	log         *logrus.Logger
	now         func() time.Time
}

func NewRequestService(
	tx Transactor,
	policies policy.Repository,
	requests request.Repository,
	assignments assignment.Repository,
	assigners *AssignerFactory,
	publisher EventPublisher,
	audit AuditRecorder,
	executor Executor,
	log *logrus.Logger,
) *RequestService {
	return &RequestService{
		tx:          tx,
		policies:    policies,
		requests:    requests,
		assignments: assignments,
		assigners:   assigners,
		publisher:   publisher,
		audit:       audit,
		executor:    executor,
		log:         log,
		now:         time.Now,
	}
}

// RequiresApproval reports whether an action type is gated: true exactly
// when an active policy exists for it. No policy means the caller proceeds
// directly.
func (s *RequestService) RequiresApproval(ctx context.Context, actionType string) (*policy.Policy, bool, error) {
	pol, err := s.policies.GetActiveByActionType(ctx, actionType)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return pol, true, nil
}

// Submit intercepts a critical action: it persists the request as PENDING,
// resolves and stores the approver set, and emits request.created. The
// original operation does not run.
func (s *RequestService) Submit(ctx context.Context, params SubmitParams) (*request.Request, error) {
	if strings.TrimSpace(params.Justification) == "" {
		return nil, fmt.Errorf("%w: justification is required", ErrValidation)
	}
	if params.RequesterID == uuid.Nil {
		return nil, fmt.Errorf("%w: requester id is required", ErrValidation)
	}

	pol, err := s.policies.GetActiveByActionType(ctx, params.ActionType)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active policy for %s", ErrConfiguration, params.ActionType)
		}
		return nil, err
	}
	if !pol.Strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrConfiguration, pol.Strategy)
	}

	var created *request.Request
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		exists, err := s.requests.ExistsPendingInScope(txCtx, params.RequesterID, params.ActionType, params.Payload.TargetItemID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateRequest
		}

		now := s.now()
		req := &request.Request{
			Code:             request.NewCode(now),
			ActionType:       params.ActionType,
			RequesterID:      params.RequesterID,
			Justification:    params.Justification,
			Payload:          params.Payload,
			ExecutionMethod:  params.Payload.Method,
			Status:           request.StatusPending,
			Credential:       params.Credential,
			ApprovalDeadline: params.ApprovalDeadline,
			Attachments:      params.Attachments,
		}
		created, err = s.requests.Create(txCtx, req)
		if err != nil {
			return err
		}

		assigned, err := s.assigners.For(pol.Strategy).Assign(txCtx, pol, created)
		if err != nil {
			return err
		}
		assigned, err = s.assignments.CreateMany(txCtx, assigned)
		if err != nil {
			return err
		}

		if err := s.audit.RecordCreate(txCtx, requestEntityType, created.ID, created, params.RequesterID); err != nil {
			s.log.WithError(err).Warn("approvals: audit record failed on submit")
		}
		return s.publisher.Publish(txCtx, &events.RequestEvent{
			Topic:       events.TopicRequestCreated,
			Request:     created,
			ApproverIDs: approverIDs(assigned),
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RecordDecision applies one approver's verdict. The request row is locked
// for the duration of the transaction, so concurrent deciders serialize and
// the second one observes the terminal status. When the decision completes
// the request as APPROVED, execution runs after commit and its outcome is
// returned to the caller; the approval itself stays durable either way.
func (s *RequestService) RecordDecision(ctx context.Context, requestID, approverID uuid.UUID, d assignment.Decision) (*request.Request, error) {
	var (
		result  *request.Request
		execute bool
	)
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.GetByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, request.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != request.StatusPending {
			return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
		}

		asg, err := s.assignments.GetActiveByRequestAndApprover(txCtx, requestID, approverID)
		if err != nil {
			if errors.Is(err, assignment.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if asg.Decided() {
			return ErrAlreadyDecided
		}

		pol, err := s.policies.GetByID(txCtx, asg.PolicyID)
		if err != nil {
			return err
		}
		if approverID == req.RequesterID && pol.Strategy != policy.StrategySelfApprovalByRole {
			return ErrSelfApprovalForbidden
		}

		if d.DecidedAt.IsZero() {
			d.DecidedAt = s.now()
		}
		applied, err := s.assignments.RecordDecision(txCtx, asg.ID, d)
		if err != nil {
			return err
		}
		if !applied {
			return ErrAlreadyDecided
		}

		all, err := s.assignments.ListByRequest(txCtx, requestID)
		if err != nil {
			return err
		}
		next := AggregateStatus(pol.Strategy, all)
		if next == request.StatusPending {
			result = req
			return nil
		}

		updated, err := s.requests.UpdateStatus(txCtx, requestID, next, s.now())
		if err != nil {
			return err
		}
		if err := s.audit.RecordUpdate(txCtx, requestEntityType, requestID, req, updated, approverID); err != nil {
			s.log.WithError(err).Warn("approvals: audit record failed on decision")
		}

		topic := events.TopicRequestRejected
		if next == request.StatusApproved {
			topic = events.TopicRequestApproved
			execute = true
		}
		result = updated
		return s.publisher.Publish(txCtx, &events.RequestEvent{
			Topic:              topic,
			Request:            updated,
			ApproverIDs:        approverIDs(all),
			UndecidedApprovers: undecidedApproverIDs(all),
		})
	})
	if err != nil {
		return nil, err
	}

	if execute {
		return s.executor.Execute(ctx, result)
	}
	return result, nil
}

// Cancel withdraws a PENDING request. Only the requester may cancel.
func (s *RequestService) Cancel(ctx context.Context, requestID, actorID uuid.UUID) (*request.Request, error) {
	var result *request.Request
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.GetByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, request.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.RequesterID != actorID {
			return ErrCancelForbidden
		}
		if req.Status != request.StatusPending {
			return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
		}

		updated, err := s.requests.UpdateStatus(txCtx, requestID, request.StatusCancelled, s.now())
		if err != nil {
			return err
		}
		if err := s.audit.RecordUpdate(txCtx, requestEntityType, requestID, req, updated, actorID); err != nil {
			s.log.WithError(err).Warn("approvals: audit record failed on cancel")
		}

		all, err := s.assignments.ListByRequest(txCtx, requestID)
		if err != nil {
			return err
		}
		result = updated
		return s.publisher.Publish(txCtx, &events.RequestEvent{
			Topic:              events.TopicRequestCancelled,
			Request:            updated,
			ApproverIDs:        approverIDs(all),
			UndecidedApprovers: undecidedApproverIDs(all),
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RequestService) GetByID(ctx context.Context, id uuid.UUID) (*request.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *RequestService) GetByCode(ctx context.Context, code string) (*request.Request, error) {
	req, err := s.requests.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *RequestService) List(ctx context.Context, params *request.FindParams) ([]*request.Request, int64, error) {
	return s.requests.List(ctx, params)
}

func (s *RequestService) Assignments(ctx context.Context, requestID uuid.UUID) ([]*assignment.Assignment, error) {
	return s.assignments.ListByRequest(ctx, requestID)
}

// PendingForApprover is the approver's inbox: requests awaiting their
// decision, oldest first.
func (s *RequestService) PendingForApprover(ctx context.Context, approverID uuid.UUID) ([]*request.Request, error) {
	pending, err := s.assignments.ListPendingByApprover(ctx, approverID)
	if err != nil {
		return nil, err
	}
	out := make([]*request.Request, 0, len(pending))
	for _, asg := range pending {
		req, err := s.requests.GetByID(ctx, asg.RequestID)
		if err != nil {
			if errors.Is(err, request.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if req.Status == request.StatusPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func approverIDs(assignments []*assignment.Assignment) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		if a.Active {
			ids = append(ids, a.ApproverID)
		}
	}
	return ids
}

func undecidedApproverIDs(assignments []*assignment.Assignment) []uuid.UUID {
	var ids []uuid.UUID
	for _, a := range assignments {
		if a.Active && !a.Decided() {
			ids = append(ids, a.ApproverID)
		}
	}
	return ids
}
