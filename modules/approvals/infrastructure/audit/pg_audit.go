// Package audit writes the immutable change log consulted by compliance.
package audit

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/benefia/approvals/pkg/composables"
)

const insertAuditSQL = `
	INSERT INTO approval_audit_log (entity_type, entity_id, operation, actor_id, before, after)
	VALUES ($1, $2, $3, $4, $5, $6)`

type PgAuditRecorder struct{}

func NewPgAuditRecorder() *PgAuditRecorder {
	return &PgAuditRecorder{}
}

func (r *PgAuditRecorder) RecordCreate(ctx context.Context, entityType string, entityID uuid.UUID, after any, actorID uuid.UUID) error {
	return r.record(ctx, entityType, entityID, "CREATE", actorID, nil, after)
}

func (r *PgAuditRecorder) RecordUpdate(ctx context.Context, entityType string, entityID uuid.UUID, before, after any, actorID uuid.UUID) error {
	return r.record(ctx, entityType, entityID, "UPDATE", actorID, before, after)
}

func (r *PgAuditRecorder) record(ctx context.Context, entityType string, entityID uuid.UUID, operation string, actorID uuid.UUID, before, after any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	beforeJSON, err := marshalSnapshot(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalSnapshot(after)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertAuditSQL, entityType, entityID, operation, actorID, beforeJSON, afterJSON); err != nil {
		return errors.Wrap(err, "insert audit record")
	}
	return nil
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode audit snapshot")
	}
	return b, nil
}
