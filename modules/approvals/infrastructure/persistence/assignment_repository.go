package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/infrastructure/persistence/models"
	"github.com/benefia/approvals/pkg/composables"
)

const (
	assignmentColumns = `
		id, request_id, policy_id, approver_id, decision,
		decision_justification, decision_attachments, decided_at, active,
		created_at, updated_at`

	insertAssignmentSQL = `
		INSERT INTO approval_assignments (request_id, policy_id, approver_id, active)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + assignmentColumns

	assignmentsByRequestSQL = `
		SELECT ` + assignmentColumns + `
		FROM approval_assignments
		WHERE request_id = $1
		ORDER BY created_at`

	activeAssignmentSQL = `
		SELECT ` + assignmentColumns + `
		FROM approval_assignments
		WHERE request_id = $1 AND approver_id = $2 AND active`

	recordDecisionSQL = `
		UPDATE approval_assignments
		SET decision = $2,
		    decision_justification = $3,
		    decision_attachments = $4,
		    decided_at = $5,
		    updated_at = now()
		WHERE id = $1 AND decision IS NULL`

	pendingByApproverSQL = `
		SELECT ` + assignmentColumns + `
		FROM approval_assignments
		WHERE approver_id = $1 AND active AND decision IS NULL
		ORDER BY created_at`
)

type PgAssignmentRepository struct{}

func NewAssignmentRepository() *PgAssignmentRepository {
	return &PgAssignmentRepository{}
}

func (r *PgAssignmentRepository) CreateMany(ctx context.Context, assignments []*assignment.Assignment) ([]*assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*assignment.Assignment, 0, len(assignments))
	for _, a := range assignments {
		row := tx.QueryRow(ctx, insertAssignmentSQL, a.RequestID, a.PolicyID, a.ApproverID, a.Active)
		created, err := scanAssignment(row)
		if err != nil {
			return nil, errors.Wrap(err, "insert approval assignment")
		}
		out = append(out, created)
	}
	return out, nil
}

func (r *PgAssignmentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*assignment.Assignment, error) {
	return r.queryMany(ctx, assignmentsByRequestSQL, requestID)
}

func (r *PgAssignmentRepository) GetActiveByRequestAndApprover(ctx context.Context, requestID, approverID uuid.UUID) (*assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	a, err := scanAssignment(tx.QueryRow(ctx, activeAssignmentSQL, requestID, approverID))
	if err != nil {
		if isNoRows(err) {
			return nil, assignment.ErrNotFound
		}
		return nil, errors.Wrap(err, "query approval assignment")
	}
	return a, nil
}

func (r *PgAssignmentRepository) RecordDecision(ctx context.Context, id uuid.UUID, d assignment.Decision) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, recordDecisionSQL, id, d.Approved, d.Justification, d.Attachments, d.DecidedAt)
	if err != nil {
		return false, errors.Wrap(err, "record decision")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgAssignmentRepository) ListPendingByApprover(ctx context.Context, approverID uuid.UUID) ([]*assignment.Assignment, error) {
	return r.queryMany(ctx, pendingByApproverSQL, approverID)
}

func (r *PgAssignmentRepository) queryMany(ctx context.Context, query string, args ...any) ([]*assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list approval assignments")
	}
	defer rows.Close()

	var out []*assignment.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (*assignment.Assignment, error) {
	var m models.ApprovalAssignment
	if err := row.Scan(
		&m.ID,
		&m.RequestID,
		&m.PolicyID,
		&m.ApproverID,
		&m.Decision,
		&m.DecisionJustification,
		&m.DecisionAttachments,
		&m.DecidedAt,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &assignment.Assignment{
		ID:                    m.ID,
		RequestID:             m.RequestID,
		PolicyID:              m.PolicyID,
		ApproverID:            m.ApproverID,
		Decision:              m.Decision,
		DecisionJustification: m.DecisionJustification,
		DecisionAttachments:   m.DecisionAttachments,
		DecidedAt:             m.DecidedAt,
		Active:                m.Active,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}, nil
}
