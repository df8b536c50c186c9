package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthtrack/healthtrack/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, patient_id, spo2_reading, systolic_reading, diastolic_reading,
	temp_reading, heartbeat_reading, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.SpO2Reading,
		&rec.SystolicReading, &rec.DiastolicReading,
		&rec.TempReading, &rec.HeartbeatReading, &rec.CreatedAt)
	return &rec, err
}

func collect(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *historyRepoPG) Create(ctx context.Context, rec *Record) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_histories (patient_id, spo2_reading, systolic_reading,
			diastolic_reading, temp_reading, heartbeat_reading)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		rec.PatientID, rec.SpO2Reading, rec.SystolicReading,
		rec.DiastolicReading, rec.TempReading, rec.HeartbeatReading).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *historyRepoPG) Latest(ctx context.Context, patientID int64, n int) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM patient_histories
		WHERE patient_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, patientID, n)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *historyRepoPG) LatestForPatients(ctx context.Context, patientIDs []int64, n int) (map[int64][]*Record, error) {
	out := make(map[int64][]*Record, len(patientIDs))
	if len(patientIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY patient_id ORDER BY created_at DESC, id DESC) AS rn
			FROM patient_histories
			WHERE patient_id = ANY($1)
		) h
		WHERE rn <= $2
		ORDER BY patient_id, created_at DESC, id DESC`, patientIDs, n)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	for _, rec := range items {
		out[rec.PatientID] = append(out[rec.PatientID], rec)
	}
	return out, nil
}

func (r *historyRepoPG) ListRange(ctx context.Context, patientID int64, from, to time.Time, limit, offset int) ([]*Record, int, error) {
	const filter = ` FROM patient_histories WHERE patient_id = $1 AND created_at >= $2 AND created_at < $3`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+filter, patientID, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+filter+
		` ORDER BY created_at DESC, id DESC LIMIT $4 OFFSET $5`, patientID, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}
