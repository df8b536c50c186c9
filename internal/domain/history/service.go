package history

import (
	"context"
	"time"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Service struct {
	records Repository
	now     func() time.Time
}

func NewService(records Repository) *Service {
	return &Service{records: records, now: time.Now}
}

func (s *Service) Record(ctx context.Context, patientID int64, req *CreateRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec := &Record{
		PatientID:        patientID,
		SpO2Reading:      req.SpO2Reading,
		SystolicReading:  req.SystolicReading,
		DiastolicReading: req.DiastolicReading,
		TempReading:      req.TempReading,
		HeartbeatReading: req.HeartbeatReading,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Latest(ctx context.Context, patientID int64) ([]*Record, error) {
	items, err := s.records.Latest(ctx, patientID, LatestLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Record{}
	}
	return items, nil
}

// LatestForPatients returns the latest records of each patient. Patients
// without history map to an empty slice.
func (s *Service) LatestForPatients(ctx context.Context, patientIDs []int64) (map[int64][]*Record, error) {
	byPatient, err := s.records.LatestForPatients(ctx, patientIDs, LatestLimit)
	if err != nil {
		return nil, err
	}
	for _, id := range patientIDs {
		if byPatient[id] == nil {
			byPatient[id] = []*Record{}
		}
	}
	return byPatient, nil
}

// ParseRange validates a YYYY-MM-DD range. The start must precede the end
// and the end must not be after today (UTC). The returned range covers the
// whole end day.
func (s *Service) ParseRange(start, end string) (Range, error) {
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return Range{}, apperr.Validation("start_date must be a date in YYYY-MM-DD format")
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return Range{}, apperr.Validation("end_date must be a date in YYYY-MM-DD format")
	}
	if !from.Before(to) {
		return Range{}, apperr.Forbidden("Start date should be less than end date")
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if to.After(today) {
		return Range{}, apperr.Forbidden("End time should not be greater than today")
	}
	return Range{From: from, To: to.AddDate(0, 0, 1)}, nil
}

func (s *Service) ListRange(ctx context.Context, patientID int64, rng Range, p pagination.Params) (*pagination.Page[*Record], error) {
	items, total, err := s.records.ListRange(ctx, patientID, rng.From, rng.To, p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, p), nil
}
