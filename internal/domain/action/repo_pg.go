package action

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthtrack/healthtrack/internal/platform/db"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type actionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &actionRepoPG{pool: pool}
}

func (r *actionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *actionRepoPG) Create(ctx context.Context, a *Action) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_actions (patient_id, action) VALUES ($1, $2)
		RETURNING id, created_at`,
		a.PatientID, string(a.Action)).Scan(&a.ID, &a.CreatedAt)
}
