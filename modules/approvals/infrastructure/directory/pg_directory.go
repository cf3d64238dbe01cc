package directory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/benefia/approvals/modules/approvals/domain/directory"
	"github.com/benefia/approvals/pkg/composables"
)

const (
	usersBySectorSQL = `
		SELECT u.id, u.role_code, u.active
		FROM users u
		JOIN user_sectors us ON us.user_id = u.id
		WHERE us.sector_code = ANY($1) AND u.active`

	usersByPermissionSQL = `
		SELECT u.id, u.role_code, u.active
		FROM users u
		JOIN user_permissions up ON up.user_id = u.id
		WHERE up.permission_code = ANY($1) AND u.active`

	userByIDSQL = `
		SELECT id, role_code, active
		FROM users
		WHERE id = $1`
)

// PgDirectory reads approver candidates from the shared user tables.
type PgDirectory struct{}

func NewPgDirectory() *PgDirectory {
	return &PgDirectory{}
}

func (d *PgDirectory) UsersBySector(ctx context.Context, sectors []string) ([]directory.User, error) {
	return d.queryUsers(ctx, usersBySectorSQL, sectors)
}

func (d *PgDirectory) UsersByPermission(ctx context.Context, permissions []string) ([]directory.User, error) {
	return d.queryUsers(ctx, usersByPermissionSQL, permissions)
}

func (d *PgDirectory) UserByID(ctx context.Context, id uuid.UUID) (*directory.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var u directory.User
	err = tx.QueryRow(ctx, userByIDSQL, id).Scan(&u.ID, &u.RoleCode, &u.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "query user")
	}
	return &u, nil
}

func (d *PgDirectory) queryUsers(ctx context.Context, query string, codes []string) ([]directory.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, codes)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer rows.Close()

	var out []directory.User
	for rows.Next() {
		var u directory.User
		if err := rows.Scan(&u.ID, &u.RoleCode, &u.Active); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
