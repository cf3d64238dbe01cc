package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/policy"
	"github.com/benefia/approvals/modules/approvals/infrastructure/persistence/models"
	"github.com/benefia/approvals/pkg/composables"
)

const (
	selectPolicySQL = `
		SELECT id,
		       action_type,
		       strategy,
		       configured_approvers,
		       escalation_sector,
		       escalation_permission,
		       self_approval_roles,
		       active,
		       created_at,
		       updated_at
		FROM approval_policies`

	policyByActionTypeSQL = selectPolicySQL + `
		WHERE action_type = $1 AND active`

	policyByIDSQL = selectPolicySQL + `
		WHERE id = $1`
)

type PgPolicyRepository struct{}

func NewPolicyRepository() *PgPolicyRepository {
	return &PgPolicyRepository{}
}

func (r *PgPolicyRepository) GetActiveByActionType(ctx context.Context, actionType string) (*policy.Policy, error) {
	return r.queryOne(ctx, policyByActionTypeSQL, actionType)
}

func (r *PgPolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*policy.Policy, error) {
	return r.queryOne(ctx, policyByIDSQL, id)
}

func (r *PgPolicyRepository) queryOne(ctx context.Context, query string, args ...any) (*policy.Policy, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, query, args...)
	pol, err := scanPolicy(row)
	if err != nil {
		if isNoRows(err) {
			return nil, policy.ErrNotFound
		}
		return nil, errors.Wrap(err, "query approval policy")
	}
	return pol, nil
}

func scanPolicy(row pgx.Row) (*policy.Policy, error) {
	var m models.ApprovalPolicy
	if err := row.Scan(
		&m.ID,
		&m.ActionType,
		&m.Strategy,
		&m.ConfiguredApprovers,
		&m.EscalationSector,
		&m.EscalationPermission,
		&m.SelfApprovalRoles,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return toDomainPolicy(&m), nil
}

func toDomainPolicy(m *models.ApprovalPolicy) *policy.Policy {
	return &policy.Policy{
		ID:                   m.ID,
		ActionType:           m.ActionType,
		Strategy:             policy.Strategy(m.Strategy),
		ConfiguredApprovers:  m.ConfiguredApprovers,
		EscalationSector:     m.EscalationSector,
		EscalationPermission: m.EscalationPermission,
		SelfApprovalRoles:    m.SelfApprovalRoles,
		Active:               m.Active,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
