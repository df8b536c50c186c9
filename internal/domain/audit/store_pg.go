package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthtrack/healthtrack/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (r *storePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, user_id, role, action, resource, target_id, method, path,
	status, request_id, ip_address, created_at`

// Insert always writes through the pool. An entry must survive the rollback
// of the request it describes.
func (r *storePG) Insert(ctx context.Context, e *Entry) error {
	return r.pool.QueryRow(ctx, `INSERT INTO audit_log
		(user_id, role, action, resource, target_id, method, path, status, request_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.UserID, e.Role, e.Action, e.Resource, e.TargetID, e.Method, e.Path,
		e.Status, e.RequestID, e.IPAddress, e.CreatedAt,
	).Scan(&e.ID)
}

func (r *storePG) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+entryCols+` FROM audit_log
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Role, &e.Action, &e.Resource, &e.TargetID,
			&e.Method, &e.Path, &e.Status, &e.RequestID, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
