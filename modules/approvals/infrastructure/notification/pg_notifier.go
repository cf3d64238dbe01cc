// Package notification persists in-app notifications for requesters and
// approvers. Delivery is best effort; losing a notification never fails the
// transition that produced it.
package notification

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/pkg/composables"
)

const insertNotificationSQL = `
	INSERT INTO approval_notifications (recipient_id, request_id, title, body)
	VALUES ($1, $2, $3, $4)`

type PgNotifier struct {
	log *logrus.Logger
}

func NewPgNotifier(log *logrus.Logger) *PgNotifier {
	return &PgNotifier{log: log}
}

func (n *PgNotifier) Notify(ctx context.Context, recipientID uuid.UUID, title, body string, linkRequestID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertNotificationSQL, recipientID, linkRequestID, title, body); err != nil {
		return errors.Wrap(err, "insert notification")
	}
	n.log.WithFields(logrus.Fields{
		"recipient_id": recipientID,
		"request_id":   linkRequestID,
		"title":        title,
	}).Debug("notification stored")
	return nil
}
