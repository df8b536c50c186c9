package history

import (
	"time"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
)

// LatestLimit is how many records the latest-history views return.
const LatestLimit = 10

// Record maps to patient_histories. Records are never updated.
type Record struct {
	ID               int64     `db:"id" json:"id"`
	PatientID        int64     `db:"patient_id" json:"-"`
	SpO2Reading      float64   `db:"spo2_reading" json:"spo2_reading"`
	SystolicReading  int       `db:"systolic_reading" json:"systolic_reading"`
	DiastolicReading int       `db:"diastolic_reading" json:"diastolic_reading"`
	TempReading      float64   `db:"temp_reading" json:"temp_reading"`
	HeartbeatReading float64   `db:"heartbeat_reading" json:"heartbeat_reading"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type CreateRequest struct {
	SpO2Reading      float64 `json:"spo2_reading"`
	SystolicReading  int     `json:"systolic_reading"`
	DiastolicReading int     `json:"diastolic_reading"`
	TempReading      float64 `json:"temp_reading"`
	HeartbeatReading float64 `json:"heartbeat_reading"`
}

// Validate requires every reading to be positive.
func (r *CreateRequest) Validate() error {
	switch {
	case r.SpO2Reading <= 0:
		return apperr.Validation("spo2_reading must be a positive value")
	case r.SystolicReading <= 0:
		return apperr.Validation("systolic_reading must be a positive value")
	case r.DiastolicReading <= 0:
		return apperr.Validation("diastolic_reading must be a positive value")
	case r.TempReading <= 0:
		return apperr.Validation("temp_reading must be a positive value")
	case r.HeartbeatReading <= 0:
		return apperr.Validation("heartbeat_reading must be a positive value")
	}
	return nil
}

// Range is a validated span of whole UTC days, From inclusive and To
// exclusive.
type Range struct {
	From time.Time
	To   time.Time
}
