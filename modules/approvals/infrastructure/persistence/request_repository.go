package persistence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
	"github.com/benefia/approvals/modules/approvals/infrastructure/persistence/models"
	"github.com/benefia/approvals/modules/approvals/services"
	"github.com/benefia/approvals/pkg/composables"
)

const (
	requestColumns = `
		id, code, action_type, requester_id, justification, payload,
		execution_method, status, credential, approval_deadline, attachments,
		processed_at, executed_at, execution_error, created_at, updated_at`

	insertRequestSQL = `
		INSERT INTO approval_requests (
			code, action_type, requester_id, justification, payload,
			execution_method, status, credential, approval_deadline, attachments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + requestColumns

	requestByIDSQL = `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE id = $1`

	requestByIDForUpdateSQL = requestByIDSQL + `
		FOR UPDATE`

	requestByCodeSQL = `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE code = $1`

	pendingInScopeSQL = `
		SELECT EXISTS (
			SELECT 1
			FROM approval_requests
			WHERE requester_id = $1
			  AND action_type = $2
			  AND status = 'PENDING'
			  AND COALESCE(payload->>'target_item_id', '') = COALESCE($3, '')
		)`

	updateRequestStatusSQL = `
		UPDATE approval_requests
		SET status = $2, processed_at = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + requestColumns

	markExecutedSQL = `
		UPDATE approval_requests
		SET status = 'EXECUTED', executed_at = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + requestColumns

	markExecutionErrorSQL = `
		UPDATE approval_requests
		SET status = 'ERROR_EXECUTED', executed_at = $2, execution_error = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + requestColumns
)

type PgRequestRepository struct{}

func NewRequestRepository() *PgRequestRepository {
	return &PgRequestRepository{}
}

func (r *PgRequestRepository) Create(ctx context.Context, req *request.Request) (*request.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m, err := toDBRequest(req)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, insertRequestSQL,
		m.Code, m.ActionType, m.RequesterID, m.Justification, m.Payload,
		m.ExecutionMethod, m.Status, m.Credential, m.ApprovalDeadline, m.Attachments,
	)
	created, err := scanRequest(row)
	if err != nil {
		// the partial unique index on (requester_id, action_type, target
		// item) is the race-proof duplicate guard behind the pre-check
		if isUniqueViolation(err) {
			return nil, services.ErrDuplicateRequest
		}
		return nil, errors.Wrap(err, "insert approval request")
	}
	return created, nil
}

func (r *PgRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*request.Request, error) {
	return r.queryOne(ctx, requestByIDSQL, id)
}

func (r *PgRequestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*request.Request, error) {
	return r.queryOne(ctx, requestByIDForUpdateSQL, id)
}

func (r *PgRequestRepository) GetByCode(ctx context.Context, code string) (*request.Request, error) {
	return r.queryOne(ctx, requestByCodeSQL, code)
}

func (r *PgRequestRepository) ExistsPendingInScope(ctx context.Context, requesterID uuid.UUID, actionType string, targetItemID *string) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, pendingInScopeSQL, requesterID, actionType, targetItemID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check pending scope")
	}
	return exists, nil
}

func (r *PgRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status request.Status, processedAt time.Time) (*request.Request, error) {
	return r.queryOne(ctx, updateRequestStatusSQL, id, string(status), processedAt)
}

func (r *PgRequestRepository) MarkExecuted(ctx context.Context, id uuid.UUID, executedAt time.Time) (*request.Request, error) {
	return r.queryOne(ctx, markExecutedSQL, id, executedAt)
}

func (r *PgRequestRepository) MarkExecutionError(ctx context.Context, id uuid.UUID, executedAt time.Time, message string) (*request.Request, error) {
	return r.queryOne(ctx, markExecutionErrorSQL, id, executedAt, message)
}

func (r *PgRequestRepository) List(ctx context.Context, params *request.FindParams) ([]*request.Request, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args := "WHERE 1=1", []any{}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where += " AND status = $" + strconv.Itoa(len(args))
	}
	if params.ActionType != "" {
		args = append(args, params.ActionType)
		where += " AND action_type = $" + strconv.Itoa(len(args))
	}
	if params.Requester != uuid.Nil {
		args = append(args, params.Requester)
		where += " AND requester_id = $" + strconv.Itoa(len(args))
	}

	var total int64
	countSQL := "SELECT COUNT(*) FROM approval_requests " + where
	if err := tx.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count approval requests")
	}

	listSQL := "SELECT " + requestColumns + " FROM approval_requests " + where +
		" ORDER BY created_at DESC"
	if params.Limit > 0 {
		args = append(args, params.Limit)
		listSQL += " LIMIT $" + strconv.Itoa(len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		listSQL += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := tx.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list approval requests")
	}
	defer rows.Close()

	var out []*request.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func (r *PgRequestRepository) queryOne(ctx context.Context, query string, args ...any) (*request.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, request.ErrNotFound
		}
		return nil, errors.Wrap(err, "query approval request")
	}
	return req, nil
}

func scanRequest(row pgx.Row) (*request.Request, error) {
	var m models.ApprovalRequest
	if err := row.Scan(
		&m.ID,
		&m.Code,
		&m.ActionType,
		&m.RequesterID,
		&m.Justification,
		&m.Payload,
		&m.ExecutionMethod,
		&m.Status,
		&m.Credential,
		&m.ApprovalDeadline,
		&m.Attachments,
		&m.ProcessedAt,
		&m.ExecutedAt,
		&m.ExecutionError,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return toDomainRequest(&m)
}

func toDomainRequest(m *models.ApprovalRequest) (*request.Request, error) {
	var payload request.ActionPayload
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, errors.Wrap(err, "decode request payload")
		}
	}
	var attachments []request.Attachment
	if len(m.Attachments) > 0 {
		if err := json.Unmarshal(m.Attachments, &attachments); err != nil {
			return nil, errors.Wrap(err, "decode request attachments")
		}
	}
	credential := ""
	if m.Credential != nil {
		credential = *m.Credential
	}
	return &request.Request{
		ID:               m.ID,
		Code:             m.Code,
		ActionType:       m.ActionType,
		RequesterID:      m.RequesterID,
		Justification:    m.Justification,
		Payload:          payload,
		ExecutionMethod:  m.ExecutionMethod,
		Status:           request.Status(m.Status),
		Credential:       credential,
		ApprovalDeadline: m.ApprovalDeadline,
		Attachments:      attachments,
		ProcessedAt:      m.ProcessedAt,
		ExecutedAt:       m.ExecutedAt,
		ExecutionError:   m.ExecutionError,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func toDBRequest(req *request.Request) (*models.ApprovalRequest, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode request payload")
	}
	attachments, err := json.Marshal(req.Attachments)
	if err != nil {
		return nil, errors.Wrap(err, "encode request attachments")
	}
	var credential *string
	if req.Credential != "" {
		credential = &req.Credential
	}
	return &models.ApprovalRequest{
		Code:             req.Code,
		ActionType:       req.ActionType,
		RequesterID:      req.RequesterID,
		Justification:    req.Justification,
		Payload:          payload,
		ExecutionMethod:  req.ExecutionMethod,
		Status:           string(req.Status),
		Credential:       credential,
		ApprovalDeadline: req.ApprovalDeadline,
		Attachments:      attachments,
	}, nil
}
