package careteam

import (
	"context"

	"github.com/healthtrack/healthtrack/internal/domain/account"
)

type Repository interface {
	// Associate links the pair and reports false when it was already linked.
	Associate(ctx context.Context, kind Kind, patientID, providerID int64) (bool, error)
	Disassociate(ctx context.Context, kind Kind, patientID, providerID int64) error
	IsAssociated(ctx context.Context, kind Kind, patientID, providerID int64) (bool, error)
	ListPatientsOf(ctx context.Context, kind Kind, providerID int64, limit, offset int) ([]*account.User, int, error)
	// ProvidersOf returns the providers of each patient keyed by patient id.
	ProvidersOf(ctx context.Context, kind Kind, patientIDs []int64) (map[int64][]*account.User, error)
	// PatientsOf returns the patients of each provider keyed by provider id.
	PatientsOf(ctx context.Context, kind Kind, providerIDs []int64) (map[int64][]*account.User, error)
}
