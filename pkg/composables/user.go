package composables

import (
	"context"
	"errors"

	"github.com/benefia/approvals/pkg/constants"
	"github.com/google/uuid"
)

var ErrNoUserID = errors.New("no user id found in context")

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.UserIDKey, id)
}

func UseUserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.UserIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoUserID
	}
	return id, nil
}
