package careteam

import (
	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/domain/history"
)

// Kind is the provider side of an association.
type Kind string

const (
	KindCaretaker Kind = "caretaker"
	KindDoctor    Kind = "doctor"
)

// Role is the account role a provider of this kind holds.
func (k Kind) Role() account.Role {
	if k == KindDoctor {
		return account.RoleDoctor
	}
	return account.RoleCaretaker
}

// Label is the capitalized name used in client messages.
func (k Kind) Label() string {
	if k == KindDoctor {
		return "Doctor"
	}
	return "Caretaker"
}

func (k Kind) table() string {
	if k == KindDoctor {
		return "patient_doctor_association_table"
	}
	return "patient_caretaker_association_table"
}

func (k Kind) column() string {
	if k == KindDoctor {
		return "doctor_id"
	}
	return "caretaker_id"
}

// KindForRole maps a caretaker or doctor role to its Kind.
func KindForRole(role string) (Kind, bool) {
	switch account.Role(role) {
	case account.RoleCaretaker:
		return KindCaretaker, true
	case account.RoleDoctor:
		return KindDoctor, true
	}
	return "", false
}

// Provider is a caretaker or doctor with the patients assigned to them.
type Provider struct {
	*account.User
	Patients []*account.User `json:"patients"`
}

// Patient is a patient with its care team and latest history.
type Patient struct {
	*account.User
	Caretakers []*account.User   `json:"caretakers"`
	Doctors    []*account.User   `json:"doctors"`
	History    []*history.Record `json:"history"`
}
