package composables_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefia/approvals/pkg/composables"
)

func TestUsePoolMissing(t *testing.T) {
	_, err := composables.UsePool(context.Background())
	assert.ErrorIs(t, err, composables.ErrNoPool)
}

func TestUseTxFallsBackToPool(t *testing.T) {
	// no tx and no pool in context: the fallback must surface the pool error
	_, err := composables.UseTx(context.Background())
	assert.ErrorIs(t, err, composables.ErrNoPool)
}

func TestUserID(t *testing.T) {
	_, err := composables.UseUserID(context.Background())
	assert.ErrorIs(t, err, composables.ErrNoUserID)

	id := uuid.New()
	ctx := composables.WithUserID(context.Background(), id)
	got, err := composables.UseUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
