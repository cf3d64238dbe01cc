package outbox

import (
	"context"
	"fmt"

	"github.com/benefia/approvals/pkg/repo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Publisher enqueues messages inside the caller's transaction so the event
// commits or rolls back together with the state change that produced it.
type Publisher interface {
	Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (sequence int64, err error)
}

type publisher struct {
	m *metrics
}

func NewPublisher() Publisher {
	return &publisher{m: getMetrics()}
}

func (p *publisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (int64, error) {
	if msg.EventID == uuid.Nil {
		return 0, fmt.Errorf("%w: event_id is required", ErrInvalidConfig)
	}
	if msg.Topic == "" {
		return 0, fmt.Errorf("%w: topic is required", ErrInvalidConfig)
	}
	if len(table) == 0 {
		return 0, fmt.Errorf("%w: table is required", ErrInvalidConfig)
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (topic, payload, event_id, available_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		 RETURNING sequence`,
		table.Sanitize(),
	)

	var sequence int64
	if err := tx.QueryRow(ctx, q, msg.Topic, msg.Payload, msg.EventID).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("outbox enqueue: %w", err)
	}

	p.m.enqueueTotal.WithLabelValues(TableLabel(table), msg.Topic).Inc()
	return sequence, nil
}
