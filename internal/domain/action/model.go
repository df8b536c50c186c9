package action

import (
	"time"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
)

// Kind is what a patient is asking their caretakers for.
type Kind string

const (
	KindWater     Kind = "water"
	KindFood      Kind = "food"
	KindWashroom  Kind = "washroom"
	KindMedicine  Kind = "medicine"
	KindEmergency Kind = "emergency"
)

func (k Kind) Valid() bool {
	switch k {
	case KindWater, KindFood, KindWashroom, KindMedicine, KindEmergency:
		return true
	}
	return false
}

// Action maps to patient_actions.
type Action struct {
	ID        int64     `db:"id" json:"id"`
	PatientID int64     `db:"patient_id" json:"patient_id"`
	Action    Kind      `db:"action" json:"action"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Notified  int       `json:"notified"`
}

type CreateRequest struct {
	Action Kind `json:"action"`
}

func (r *CreateRequest) Validate() error {
	if !r.Action.Valid() {
		return apperr.Validation("action must be one of water, food, washroom, medicine, emergency")
	}
	return nil
}
