package persistence

import (
	"context"

	"github.com/benefia/approvals/pkg/composables"
)

// PgTransactor runs ledger operations inside a pgx transaction carried by
// the context. Nested calls join the ambient transaction.
type PgTransactor struct{}

func NewTransactor() *PgTransactor {
	return &PgTransactor{}
}

func (PgTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return composables.InTx(ctx, fn)
}
