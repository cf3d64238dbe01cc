// Package handlers hosts event subscribers reacting to ledger transitions
// after commit. Delivery is at-least-once, so every handler is idempotent
// from the recipient's point of view.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/domain/events"
	"github.com/benefia/approvals/modules/approvals/services"
	"github.com/benefia/approvals/pkg/composables"
	"github.com/benefia/approvals/pkg/eventbus"
	"github.com/benefia/approvals/pkg/outbox"
)

// NotificationHandler turns transition events into in-app notifications:
// approvers learn about new work, requesters learn about outcomes. It runs
// on the relay goroutine, so it carries its own database pool.
type NotificationHandler struct {
	pool     *pgxpool.Pool
	notifier services.NotificationDispatcher
	log      *logrus.Logger
}

func RegisterNotificationHandler(bus eventbus.EventBusWithError, pool *pgxpool.Pool, notifier services.NotificationDispatcher, log *logrus.Logger) *NotificationHandler {
	h := &NotificationHandler{pool: pool, notifier: notifier, log: log}
	bus.Subscribe(h.handle)
	return h
}

func (h *NotificationHandler) handle(meta *outbox.Meta, topic string, payload json.RawMessage) error {
	event, err := events.Unmarshal(payload)
	if err != nil {
		h.log.WithError(err).WithField("topic", topic).Error("notification handler: bad event payload")
		// malformed payloads never become deliverable; drop instead of retry
		return nil
	}
	if event.Request == nil {
		return nil
	}

	ctx := context.Background()
	if h.pool != nil {
		ctx = composables.WithPool(ctx, h.pool)
	}
	switch topic {
	case events.TopicRequestCreated:
		return h.notifyAll(ctx, event.ApproverIDs, event,
			"Approval requested",
			fmt.Sprintf("Request %s (%s) awaits your decision.", event.Request.Code, event.Request.ActionType))
	case events.TopicRequestApproved:
		return h.notifyRequester(ctx, event, "Request approved",
			fmt.Sprintf("Your request %s was approved.", event.Request.Code))
	case events.TopicRequestRejected:
		if err := h.notifyRequester(ctx, event, "Request rejected",
			fmt.Sprintf("Your request %s was rejected.", event.Request.Code)); err != nil {
			return err
		}
		// assignments left undecided are closed by the rejection
		return h.notifyAll(ctx, event.UndecidedApprovers, event,
			"Request closed",
			fmt.Sprintf("Request %s was rejected; no further decision is needed.", event.Request.Code))
	case events.TopicRequestExecuted:
		return h.notifyRequester(ctx, event, "Request executed",
			fmt.Sprintf("Your approved request %s was executed successfully.", event.Request.Code))
	case events.TopicRequestErrorExecution:
		return h.notifyRequester(ctx, event, "Execution failed",
			fmt.Sprintf("Your approved request %s failed to execute.", event.Request.Code))
	case events.TopicRequestCancelled:
		return h.notifyAll(ctx, event.UndecidedApprovers, event,
			"Request cancelled",
			fmt.Sprintf("Request %s was cancelled by the requester.", event.Request.Code))
	default:
		h.log.WithFields(logrus.Fields{"topic": topic, "sequence": meta.Sequence}).
			Debug("notification handler: topic not handled")
		return nil
	}
}

func (h *NotificationHandler) notifyRequester(ctx context.Context, event *events.RequestEvent, title, body string) error {
	return h.notifier.Notify(ctx, event.Request.RequesterID, title, body, event.Request.ID)
}

func (h *NotificationHandler) notifyAll(ctx context.Context, recipients []uuid.UUID, event *events.RequestEvent, title, body string) error {
	for _, id := range recipients {
		if err := h.notifier.Notify(ctx, id, title, body, event.Request.ID); err != nil {
			h.log.WithError(err).WithField("recipient_id", id).Warn("notification handler: delivery failed")
		}
	}
	return nil
}
