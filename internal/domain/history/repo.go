package history

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	// Latest returns up to n records of one patient, newest first.
	Latest(ctx context.Context, patientID int64, n int) ([]*Record, error)
	// LatestForPatients is Latest for many patients in one query.
	LatestForPatients(ctx context.Context, patientIDs []int64, n int) (map[int64][]*Record, error)
	ListRange(ctx context.Context, patientID int64, from, to time.Time, limit, offset int) ([]*Record, int, error)
}
