package careteam

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type careTeamRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &careTeamRepoPG{pool: pool}
}

func (r *careTeamRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *careTeamRepoPG) Associate(ctx context.Context, kind Kind, patientID, providerID int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `INSERT INTO `+kind.table()+` (patient_id, `+kind.column()+`)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, patientID, providerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *careTeamRepoPG) Disassociate(ctx context.Context, kind Kind, patientID, providerID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+kind.table()+`
		WHERE patient_id = $1 AND `+kind.column()+` = $2`, patientID, providerID)
	return err
}

func (r *careTeamRepoPG) IsAssociated(ctx context.Context, kind Kind, patientID, providerID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+kind.table()+`
		WHERE patient_id = $1 AND `+kind.column()+` = $2)`, patientID, providerID).Scan(&ok)
	return ok, err
}

func (r *careTeamRepoPG) ListPatientsOf(ctx context.Context, kind Kind, providerID int64, limit, offset int) ([]*account.User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+kind.table()+`
		WHERE `+kind.column()+` = $1`, providerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+account.UserColumns+` FROM `+account.UserFrom+`
		JOIN `+kind.table()+` a ON a.patient_id = u.id
		WHERE a.`+kind.column()+` = $1
		ORDER BY u.id LIMIT $2 OFFSET $3`, providerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*account.User
	for rows.Next() {
		u, err := account.ScanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *careTeamRepoPG) ProvidersOf(ctx context.Context, kind Kind, patientIDs []int64) (map[int64][]*account.User, error) {
	return r.grouped(ctx, `SELECT a.patient_id, `+account.UserColumns+` FROM `+account.UserFrom+`
		JOIN `+kind.table()+` a ON a.`+kind.column()+` = u.id
		WHERE a.patient_id = ANY($1)
		ORDER BY a.patient_id, u.id`, patientIDs)
}

func (r *careTeamRepoPG) PatientsOf(ctx context.Context, kind Kind, providerIDs []int64) (map[int64][]*account.User, error) {
	return r.grouped(ctx, `SELECT a.`+kind.column()+`, `+account.UserColumns+` FROM `+account.UserFrom+`
		JOIN `+kind.table()+` a ON a.patient_id = u.id
		WHERE a.`+kind.column()+` = ANY($1)
		ORDER BY a.`+kind.column()+`, u.id`, providerIDs)
}

// grouped runs a query whose first column is the grouping key followed by
// account.UserColumns.
func (r *careTeamRepoPG) grouped(ctx context.Context, sql string, ids []int64) (map[int64][]*account.User, error) {
	out := make(map[int64][]*account.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key int64
		u, err := account.ScanUser(rows, &key)
		if err != nil {
			return nil, err
		}
		out[key] = append(out[key], u)
	}
	return out, rows.Err()
}
