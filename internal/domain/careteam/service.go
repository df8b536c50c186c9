package careteam

import (
	"context"
	"errors"

	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/domain/history"
	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

const noAccessDetail = "Either patient not found or you do not have access"

// UserLookup is the part of the account store the care team reads.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*account.User, error)
	List(ctx context.Context, role account.Role, limit, offset int) ([]*account.User, int, error)
}

// HistoryReader is implemented by *history.Service.
type HistoryReader interface {
	LatestForPatients(ctx context.Context, patientIDs []int64) (map[int64][]*history.Record, error)
	ParseRange(start, end string) (history.Range, error)
	ListRange(ctx context.Context, patientID int64, rng history.Range, p pagination.Params) (*pagination.Page[*history.Record], error)
}

type Service struct {
	teams   Repository
	users   UserLookup
	history HistoryReader
}

func NewService(teams Repository, users UserLookup, hist HistoryReader) *Service {
	return &Service{teams: teams, users: users, history: hist}
}

// userWithRole loads a user and reports missing users and users holding a
// different role as NotFound with the given detail.
func (s *Service) userWithRole(ctx context.Context, id int64, role account.Role, detail string) (*account.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && u.Role != role) {
		return nil, apperr.NotFound("%s", detail)
	}
	return u, err
}

func (s *Service) parties(ctx context.Context, kind Kind, patientID, providerID int64) error {
	if _, err := s.userWithRole(ctx, patientID, account.RolePatient, "Patient not found"); err != nil {
		return err
	}
	_, err := s.userWithRole(ctx, providerID, kind.Role(), kind.Label()+" not found")
	return err
}

func (s *Service) Associate(ctx context.Context, kind Kind, patientID, providerID int64) error {
	if err := s.parties(ctx, kind, patientID, providerID); err != nil {
		return err
	}
	created, err := s.teams.Associate(ctx, kind, patientID, providerID)
	if err != nil {
		return err
	}
	if !created {
		return apperr.Conflict("%s is already associated with this patient", kind.Label())
	}
	return nil
}

// Disassociate removes the pair. Removing a pair that does not exist
// succeeds.
func (s *Service) Disassociate(ctx context.Context, kind Kind, patientID, providerID int64) error {
	if err := s.parties(ctx, kind, patientID, providerID); err != nil {
		return err
	}
	return s.teams.Disassociate(ctx, kind, patientID, providerID)
}

func (s *Service) ListProviders(ctx context.Context, kind Kind, p pagination.Params) (*pagination.Page[*Provider], error) {
	users, total, err := s.users.List(ctx, kind.Role(), p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	providers, err := s.expandProviders(ctx, kind, users)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(providers, total, p), nil
}

func (s *Service) GetProvider(ctx context.Context, kind Kind, id int64) (*Provider, error) {
	u, err := s.userWithRole(ctx, id, kind.Role(), kind.Label()+" not found")
	if err != nil {
		return nil, err
	}
	providers, err := s.expandProviders(ctx, kind, []*account.User{u})
	if err != nil {
		return nil, err
	}
	return providers[0], nil
}

func (s *Service) ListPatients(ctx context.Context, p pagination.Params) (*pagination.Page[*Patient], error) {
	users, total, err := s.users.List(ctx, account.RolePatient, p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	patients, err := s.expandPatients(ctx, users)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(patients, total, p), nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	u, err := s.userWithRole(ctx, id, account.RolePatient, "Patient not found")
	if err != nil {
		return nil, err
	}
	patients, err := s.expandPatients(ctx, []*account.User{u})
	if err != nil {
		return nil, err
	}
	return patients[0], nil
}

// ListPatientsFor pages through the patients assigned to a caretaker or
// doctor.
func (s *Service) ListPatientsFor(ctx context.Context, p *auth.Principal, params pagination.Params) (*pagination.Page[*Patient], error) {
	kind, ok := KindForRole(p.Role)
	if !ok {
		return nil, apperr.Forbidden("Patients can not access this route")
	}
	users, total, err := s.teams.ListPatientsOf(ctx, kind, p.UserID, params.Limit(), params.Offset())
	if err != nil {
		return nil, err
	}
	patients, err := s.expandPatients(ctx, users)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(patients, total, params), nil
}

// GetPatientFor returns an assigned patient. Unassigned and missing
// patients are reported identically.
func (s *Service) GetPatientFor(ctx context.Context, p *auth.Principal, patientID int64) (*Patient, error) {
	if err := s.checkAccess(ctx, p, patientID); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Forbidden(noAccessDetail)
		}
		return nil, err
	}
	patients, err := s.expandPatients(ctx, []*account.User{u})
	if err != nil {
		return nil, err
	}
	return patients[0], nil
}

// HistoryFor pages through an assigned patient's history between two
// YYYY-MM-DD dates. The range is validated before access is checked.
func (s *Service) HistoryFor(ctx context.Context, p *auth.Principal, patientID int64, start, end string, params pagination.Params) (*pagination.Page[*history.Record], error) {
	rng, err := s.history.ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, p, patientID); err != nil {
		return nil, err
	}
	return s.history.ListRange(ctx, patientID, rng, params)
}

func (s *Service) checkAccess(ctx context.Context, p *auth.Principal, patientID int64) error {
	kind, ok := KindForRole(p.Role)
	if !ok {
		return apperr.Forbidden("Patients can not access this route")
	}
	assigned, err := s.teams.IsAssociated(ctx, kind, patientID, p.UserID)
	if err != nil {
		return err
	}
	if !assigned {
		return apperr.Forbidden(noAccessDetail)
	}
	return nil
}

// CaretakersOf lists the caretakers assigned to a patient.
func (s *Service) CaretakersOf(ctx context.Context, patientID int64) ([]*account.User, error) {
	byPatient, err := s.teams.ProvidersOf(ctx, KindCaretaker, []int64{patientID})
	if err != nil {
		return nil, err
	}
	return byPatient[patientID], nil
}

func ids(users []*account.User) []int64 {
	out := make([]int64, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Service) expandProviders(ctx context.Context, kind Kind, users []*account.User) ([]*Provider, error) {
	patients, err := s.teams.PatientsOf(ctx, kind, ids(users))
	if err != nil {
		return nil, err
	}
	out := make([]*Provider, len(users))
	for i, u := range users {
		out[i] = &Provider{User: u, Patients: orEmpty(patients[u.ID])}
	}
	return out, nil
}

// expandPatients attaches caretakers, doctors and latest history with one
// query each, whatever the number of patients.
func (s *Service) expandPatients(ctx context.Context, users []*account.User) ([]*Patient, error) {
	patientIDs := ids(users)
	caretakers, err := s.teams.ProvidersOf(ctx, KindCaretaker, patientIDs)
	if err != nil {
		return nil, err
	}
	doctors, err := s.teams.ProvidersOf(ctx, KindDoctor, patientIDs)
	if err != nil {
		return nil, err
	}
	hist, err := s.history.LatestForPatients(ctx, patientIDs)
	if err != nil {
		return nil, err
	}
	out := make([]*Patient, len(users))
	for i, u := range users {
		out[i] = &Patient{
			User:       u,
			Caretakers: orEmpty(caretakers[u.ID]),
			Doctors:    orEmpty(doctors[u.ID]),
			History:    orEmpty(hist[u.ID]),
		}
	}
	return out, nil
}
