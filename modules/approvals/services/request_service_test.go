package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/policy"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
	"github.com/benefia/approvals/modules/approvals/domain/directory"
	"github.com/benefia/approvals/modules/approvals/domain/events"
	"github.com/benefia/approvals/modules/approvals/services"
)

type fixture struct {
	svc        *services.RequestService
	policies   *memPolicies
	requests   *memRequests
	asgs       *memAssignments
	dir        *memDirectory
	publisher  *memPublisher
	audit      *memAudit
	downstream *fakeDownstream
}

func newFixture(pols ...*policy.Policy) *fixture {
	byAction := map[string]*policy.Policy{}
	for _, p := range pols {
		byAction[p.ActionType] = p
	}
	f := &fixture{
		policies:   &memPolicies{byAction: byAction},
		requests:   newMemRequests(),
		asgs:       newMemAssignments(),
		dir:        newMemDirectory(),
		publisher:  &memPublisher{},
		audit:      &memAudit{},
		downstream: &fakeDownstream{},
	}
	log := quietLogger()
	executor := services.NewExecutorService(passTx{}, f.requests, f.downstream, f.publisher, log)
	f.svc = services.NewRequestService(
		passTx{},
		f.policies,
		f.requests,
		f.asgs,
		services.NewAssignerFactory(f.dir, log),
		f.publisher,
		f.audit,
		executor,
		log,
	)
	return f
}

func submitParams(actionType string, requesterID uuid.UUID) services.SubmitParams {
	return services.SubmitParams{
		ActionType:    actionType,
		RequesterID:   requesterID,
		Justification: "quarterly adjustment",
		Credential:    "Bearer token-123",
		Payload: request.ActionPayload{
			URL:          "/api/v1/payments/:id/approve",
			Method:       "POST",
			Params:       map[string]string{"id": "pay-1"},
			Body:         json.RawMessage(`{"amount": 100, "justificativa_aprovacao": "x"}`),
			TargetItemID: strptr("pay-1"),
		},
	}
}

func approve(justification string) assignment.Decision {
	return assignment.Decision{Approved: true, Justification: &justification}
}

func reject(justification string) assignment.Decision {
	return assignment.Decision{Approved: false, Justification: &justification}
}

func TestRequiresApproval(t *testing.T) {
	ctx := context.Background()
	pol := simplePolicy(request.ActionDeleteRecord, policy.StrategySimple, uuid.New())
	f := newFixture(pol)

	got, gated, err := f.svc.RequiresApproval(ctx, request.ActionDeleteRecord)
	require.NoError(t, err)
	assert.True(t, gated)
	assert.Equal(t, pol.ID, got.ID)

	_, gated, err = f.svc.RequiresApproval(ctx, request.ActionTransferBenefit)
	require.NoError(t, err)
	assert.False(t, gated)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	approver := uuid.New()
	requester := uuid.New()

	t.Run("creates pending request with assignments and event", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))

		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		assert.Equal(t, request.StatusPending, created.Status)
		assert.Regexp(t, `^APR-\d{4}-[A-Z2-9]{8}$`, created.Code)
		assert.Equal(t, requester, created.RequesterID)

		asgs, err := f.svc.Assignments(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, asgs, 1)
		assert.Equal(t, approver, asgs[0].ApproverID)

		assert.Equal(t, []string{events.TopicRequestCreated}, f.publisher.topics())
		assert.Equal(t, 1, f.audit.creates)
	})

	t.Run("rejects duplicate pending submission in same scope", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))

		_, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		_, err = f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		assert.ErrorIs(t, err, services.ErrDuplicateRequest)
	})

	t.Run("different target item is not a duplicate", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))

		_, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		other := submitParams(request.ActionApprovePayment, requester)
		other.Payload.TargetItemID = strptr("pay-2")
		_, err = f.svc.Submit(ctx, other)
		assert.NoError(t, err)
	})

	t.Run("no active policy is a configuration error", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		assert.ErrorIs(t, err, services.ErrConfiguration)
	})

	t.Run("missing justification fails validation", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))

		params := submitParams(request.ActionApprovePayment, requester)
		params.Justification = "  "
		_, err := f.svc.Submit(ctx, params)
		assert.ErrorIs(t, err, services.ErrValidation)
	})
}

func TestRecordDecisionSimple(t *testing.T) {
	ctx := context.Background()
	approver := uuid.New()
	requester := uuid.New()

	t.Run("single approval approves and executes", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver, uuid.New()))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		updated, err := f.svc.RecordDecision(ctx, created.ID, approver, approve("looks right"))
		require.NoError(t, err)
		assert.Equal(t, request.StatusExecuted, updated.Status)

		assert.Equal(t, []string{
			events.TopicRequestCreated,
			events.TopicRequestApproved,
			events.TopicRequestExecuted,
		}, f.publisher.topics())

		replay := f.downstream.last()
		require.NotNil(t, replay)
		assert.Equal(t, "POST", replay.Method)
		assert.Equal(t, "/api/v1/payments/pay-1/approve", replay.URL)
		assert.Equal(t, "Bearer token-123", replay.Authorization)
		assert.NotContains(t, string(replay.Body), "justificativa_aprovacao")
	})

	t.Run("single rejection rejects without execution", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver, uuid.New()))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		updated, err := f.svc.RecordDecision(ctx, created.ID, approver, reject("not justified"))
		require.NoError(t, err)
		assert.Equal(t, request.StatusRejected, updated.Status)
		assert.Nil(t, f.downstream.last())
		assert.Contains(t, f.publisher.topics(), events.TopicRequestRejected)
	})

	t.Run("second decision on same assignment is rejected", func(t *testing.T) {
		a, b := uuid.New(), uuid.New()
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategyMajority, a, b, uuid.New()))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, a, approve("yes"))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, a, approve("yes again"))
		assert.ErrorIs(t, err, services.ErrAlreadyDecided)
	})

	t.Run("decision after terminal status is invalid state", func(t *testing.T) {
		other := uuid.New()
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver, other))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, approver, reject("no"))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, other, approve("yes"))
		assert.ErrorIs(t, err, services.ErrInvalidState)
	})

	t.Run("non-assigned user gets not found", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, uuid.New(), approve("yes"))
		assert.ErrorIs(t, err, services.ErrNotFound)
	})
}

func TestRecordDecisionMajority(t *testing.T) {
	ctx := context.Background()
	requester := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	t.Run("stays pending until strict majority", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionTransferBenefit, policy.StrategyMajority, a, b, c))
		params := submitParams(request.ActionTransferBenefit, requester)
		created, err := f.svc.Submit(ctx, params)
		require.NoError(t, err)

		first, err := f.svc.RecordDecision(ctx, created.ID, a, approve("ok"))
		require.NoError(t, err)
		assert.Equal(t, request.StatusPending, first.Status)
		assert.Nil(t, f.downstream.last())

		second, err := f.svc.RecordDecision(ctx, created.ID, b, approve("ok"))
		require.NoError(t, err)
		assert.Equal(t, request.StatusExecuted, second.Status)
	})

	t.Run("one rejection rejects even with an approval recorded", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionTransferBenefit, policy.StrategyMajority, a, b, c))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionTransferBenefit, requester))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, a, approve("ok"))
		require.NoError(t, err)

		updated, err := f.svc.RecordDecision(ctx, created.ID, b, reject("fraud risk"))
		require.NoError(t, err)
		assert.Equal(t, request.StatusRejected, updated.Status)
		assert.Nil(t, f.downstream.last())
	})
}

func TestRecordDecisionSelfApproval(t *testing.T) {
	ctx := context.Background()
	requester := uuid.New()

	t.Run("requester cannot decide own request under other strategies", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, requester))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, requester, approve("self serve"))
		assert.ErrorIs(t, err, services.ErrSelfApprovalForbidden)
	})

	t.Run("self approval strategy lets a qualifying requester decide", func(t *testing.T) {
		pol := simplePolicy(request.ActionModifyCriticalData, policy.StrategySelfApprovalByRole, uuid.New())
		pol.SelfApprovalRoles = []string{"DIRECTOR"}
		f := newFixture(pol)
		f.dir.users[requester] = directory.User{ID: requester, RoleCode: "DIRECTOR", Active: true}

		created, err := f.svc.Submit(ctx, submitParams(request.ActionModifyCriticalData, requester))
		require.NoError(t, err)

		updated, err := f.svc.RecordDecision(ctx, created.ID, requester, approve("within my authority"))
		require.NoError(t, err)
		assert.Equal(t, request.StatusExecuted, updated.Status)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	approver := uuid.New()
	requester := uuid.New()

	t.Run("requester cancels a pending request", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		updated, err := f.svc.Cancel(ctx, created.ID, requester)
		require.NoError(t, err)
		assert.Equal(t, request.StatusCancelled, updated.Status)
		assert.Contains(t, f.publisher.topics(), events.TopicRequestCancelled)
	})

	t.Run("only the requester may cancel", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, created.ID, approver)
		assert.ErrorIs(t, err, services.ErrCancelForbidden)
	})

	t.Run("cancel after decision is invalid state", func(t *testing.T) {
		f := newFixture(simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver))
		created, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
		require.NoError(t, err)

		_, err = f.svc.RecordDecision(ctx, created.ID, approver, reject("no"))
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, created.ID, requester)
		assert.ErrorIs(t, err, services.ErrInvalidState)
	})
}

func TestPendingForApprover(t *testing.T) {
	ctx := context.Background()
	approver := uuid.New()
	requester := uuid.New()

	f := newFixture(
		simplePolicy(request.ActionApprovePayment, policy.StrategySimple, approver),
		simplePolicy(request.ActionSuspendBenefit, policy.StrategySimple, approver),
	)

	first, err := f.svc.Submit(ctx, submitParams(request.ActionApprovePayment, requester))
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, submitParams(request.ActionSuspendBenefit, requester))
	require.NoError(t, err)

	inbox, err := f.svc.PendingForApprover(ctx, approver)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)

	_, err = f.svc.RecordDecision(ctx, first.ID, approver, reject("no"))
	require.NoError(t, err)

	inbox, err = f.svc.PendingForApprover(ctx, approver)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, second.ID, inbox[0].ID)
}
