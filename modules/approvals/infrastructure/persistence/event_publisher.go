package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/benefia/approvals/modules/approvals/domain/events"
	"github.com/benefia/approvals/pkg/composables"
	"github.com/benefia/approvals/pkg/outbox"
)

// OutboxTable is where transition events wait for the relay.
var OutboxTable = pgx.Identifier{"approval_outbox"}

// OutboxEventPublisher writes transition events into the outbox inside the
// same transaction as the transition itself. The relay delivers them to
// subscribers after commit, at least once.
type OutboxEventPublisher struct {
	publisher outbox.Publisher
}

func NewOutboxEventPublisher() *OutboxEventPublisher {
	return &OutboxEventPublisher{publisher: outbox.NewPublisher()}
}

func (p *OutboxEventPublisher) Publish(ctx context.Context, event *events.RequestEvent) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	payload, err := event.Marshal()
	if err != nil {
		return errors.Wrap(err, "encode request event")
	}
	_, err = p.publisher.Enqueue(ctx, tx, OutboxTable, outbox.Message{
		Topic:   event.Topic,
		EventID: uuid.New(),
		Payload: payload,
	})
	return err
}
