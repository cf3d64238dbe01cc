package services_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/policy"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
	"github.com/benefia/approvals/modules/approvals/domain/directory"
	"github.com/benefia/approvals/modules/approvals/domain/events"
	"github.com/benefia/approvals/modules/approvals/services"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// passTx satisfies the transactor contract without a database. Rollback
// semantics are not simulated; tests assert on returned errors instead.
type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type capturedEvent struct {
	Topic string
	Event *events.RequestEvent
}

type memPublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *memPublisher) Publish(_ context.Context, e *events.RequestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{Topic: e.Topic, Event: e})
	return nil
}

func (p *memPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Topic)
	}
	return out
}

type memAudit struct {
	creates int
	updates int
}

func (a *memAudit) RecordCreate(_ context.Context, _ string, _ uuid.UUID, _ any, _ uuid.UUID) error {
	a.creates++
	return nil
}

func (a *memAudit) RecordUpdate(_ context.Context, _ string, _ uuid.UUID, _, _ any, _ uuid.UUID) error {
	a.updates++
	return nil
}

type memPolicies struct {
	byAction map[string]*policy.Policy
}

func (r *memPolicies) GetActiveByActionType(_ context.Context, actionType string) (*policy.Policy, error) {
	pol, ok := r.byAction[actionType]
	if !ok || !pol.Active {
		return nil, policy.ErrNotFound
	}
	return pol, nil
}

func (r *memPolicies) GetByID(_ context.Context, id uuid.UUID) (*policy.Policy, error) {
	for _, pol := range r.byAction {
		if pol.ID == id {
			return pol, nil
		}
	}
	return nil, policy.ErrNotFound
}

type memRequests struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*request.Request
}

func newMemRequests() *memRequests {
	return &memRequests{byID: map[uuid.UUID]*request.Request{}}
}

func (r *memRequests) Create(_ context.Context, req *request.Request) (*request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRequests) GetByID(_ context.Context, id uuid.UUID) (*request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	out := *req
	return &out, nil
}

func (r *memRequests) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*request.Request, error) {
	return r.GetByID(ctx, id)
}

func (r *memRequests) GetByCode(_ context.Context, code string) (*request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.byID {
		if req.Code == code {
			out := *req
			return &out, nil
		}
	}
	return nil, request.ErrNotFound
}

func (r *memRequests) ExistsPendingInScope(_ context.Context, requesterID uuid.UUID, actionType string, targetItemID *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.byID {
		if req.Status != request.StatusPending || req.RequesterID != requesterID || req.ActionType != actionType {
			continue
		}
		if targetItemID == nil || req.Payload.TargetItemID == nil {
			if targetItemID == nil && req.Payload.TargetItemID == nil {
				return true, nil
			}
			continue
		}
		if *targetItemID == *req.Payload.TargetItemID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRequests) UpdateStatus(_ context.Context, id uuid.UUID, status request.Status, processedAt time.Time) (*request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	req.Status = status
	req.ProcessedAt = &processedAt
	req.UpdatedAt = time.Now()
	out := *req
	return &out, nil
}

func (r *memRequests) MarkExecuted(_ context.Context, id uuid.UUID, executedAt time.Time) (*request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	req.Status = request.StatusExecuted
	req.ExecutedAt = &executedAt
	out := *req
	return &out, nil
}

func (r *memRequests) MarkExecutionError(_ context.Context, id uuid.UUID, executedAt time.Time, message string) (*request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	req.Status = request.StatusErrorExecuted
	req.ExecutedAt = &executedAt
	req.ExecutionError = &message
	out := *req
	return &out, nil
}

func (r *memRequests) List(_ context.Context, params *request.FindParams) ([]*request.Request, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*request.Request
	for _, req := range r.byID {
		if params.Status != "" && req.Status != params.Status {
			continue
		}
		if params.ActionType != "" && req.ActionType != params.ActionType {
			continue
		}
		if params.Requester != uuid.Nil && req.RequesterID != params.Requester {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

type memAssignments struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*assignment.Assignment
}

func newMemAssignments() *memAssignments {
	return &memAssignments{byID: map[uuid.UUID]*assignment.Assignment{}}
}

func (r *memAssignments) CreateMany(_ context.Context, assignments []*assignment.Assignment) ([]*assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*assignment.Assignment, 0, len(assignments))
	for _, a := range assignments {
		cp := *a
		cp.ID = uuid.New()
		cp.CreatedAt = time.Now()
		cp.UpdatedAt = cp.CreatedAt
		r.byID[cp.ID] = &cp
		res := cp
		out = append(out, &res)
	}
	return out, nil
}

func (r *memAssignments) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*assignment.Assignment
	for _, a := range r.byID {
		if a.RequestID == requestID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAssignments) GetActiveByRequestAndApprover(_ context.Context, requestID, approverID uuid.UUID) (*assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.RequestID == requestID && a.ApproverID == approverID && a.Active {
			cp := *a
			return &cp, nil
		}
	}
	return nil, assignment.ErrNotFound
}

func (r *memAssignments) RecordDecision(_ context.Context, id uuid.UUID, d assignment.Decision) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, assignment.ErrNotFound
	}
	if a.Decision != nil {
		return false, nil
	}
	approved := d.Approved
	a.Decision = &approved
	a.DecisionJustification = d.Justification
	a.DecisionAttachments = d.Attachments
	decidedAt := d.DecidedAt
	a.DecidedAt = &decidedAt
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *memAssignments) ListPendingByApprover(_ context.Context, approverID uuid.UUID) ([]*assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*assignment.Assignment
	for _, a := range r.byID {
		if a.ApproverID == approverID && a.Active && a.Decision == nil {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memDirectory struct {
	users         map[uuid.UUID]directory.User
	bySector      map[string][]uuid.UUID
	byPermission  map[string][]uuid.UUID
	sectorErr     error
	permissionErr error
	userErr       error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users:        map[uuid.UUID]directory.User{},
		bySector:     map[string][]uuid.UUID{},
		byPermission: map[string][]uuid.UUID{},
	}
}

func (d *memDirectory) UsersBySector(_ context.Context, sectors []string) ([]directory.User, error) {
	if d.sectorErr != nil {
		return nil, d.sectorErr
	}
	var out []directory.User
	for _, s := range sectors {
		for _, id := range d.bySector[s] {
			out = append(out, d.users[id])
		}
	}
	return out, nil
}

func (d *memDirectory) UsersByPermission(_ context.Context, permissions []string) ([]directory.User, error) {
	if d.permissionErr != nil {
		return nil, d.permissionErr
	}
	var out []directory.User
	for _, p := range permissions {
		for _, id := range d.byPermission[p] {
			out = append(out, d.users[id])
		}
	}
	return out, nil
}

func (d *memDirectory) UserByID(_ context.Context, id uuid.UUID) (*directory.User, error) {
	if d.userErr != nil {
		return nil, d.userErr
	}
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type fakeDownstream struct {
	mu       sync.Mutex
	requests []*services.ReplayRequest
	response *services.ReplayResponse
	err      error
}

func (c *fakeDownstream) Do(_ context.Context, req *services.ReplayRequest) (*services.ReplayResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if c.response != nil {
		return c.response, nil
	}
	return &services.ReplayResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
}

func (c *fakeDownstream) last() *services.ReplayRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

func strptr(s string) *string { return &s }

func simplePolicy(actionType string, strategy policy.Strategy, approvers ...uuid.UUID) *policy.Policy {
	return &policy.Policy{
		ID:                  uuid.New(),
		ActionType:          actionType,
		Strategy:            strategy,
		ConfiguredApprovers: approvers,
		Active:              true,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
}
