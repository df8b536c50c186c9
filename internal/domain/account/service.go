package account

import (
	"context"
	"errors"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

type Service struct {
	users UserRepository
	hash  func(string) (string, error)
}

func NewService(users UserRepository) *Service {
	return &Service{users: users, hash: auth.HashPassword}
}

func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("User already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Gender:       req.Gender,
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetAdmin(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && u.Role != RoleAdmin) {
		return nil, apperr.NotFound("Admin not found")
	}
	return u, err
}

// ListUsers pages through users, restricted to role unless it is empty.
func (s *Service) ListUsers(ctx context.Context, role Role, p pagination.Params) (*pagination.Page[*User], error) {
	items, total, err := s.users.List(ctx, role, p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, p), nil
}

// UpdateUser applies req to the user with the given id. The email and
// phone may stay as they are but must not belong to another user.
func (s *Service) UpdateUser(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details := u.AdditionalDetails
	if req.AdditionalDetails != nil {
		if details, err = req.AdditionalDetails.details(); err != nil {
			return nil, err
		}
	}

	if err := s.checkOwned(ctx, u.ID, s.users.GetByEmail, req.Email, "User with same email already exists"); err != nil {
		return nil, err
	}
	if details.Phone != nil {
		if err := s.checkOwned(ctx, u.ID, s.users.GetByPhone, *details.Phone, "This phone number is already in use"); err != nil {
			return nil, err
		}
	}

	u.Name = req.Name
	u.Email = req.Email
	u.Gender = req.Gender
	u.AdditionalDetails = details
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) checkOwned(ctx context.Context, id int64, lookup func(context.Context, string) (*User, error), value, detail string) error {
	other, err := lookup(ctx, value)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != id:
		return apperr.Conflict("%s", detail)
	}
	return nil
}

func (s *Service) UpdatePassword(ctx context.Context, id int64, req *PasswordUpdateRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	hash, err := s.hash(req.NewPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}

// Authenticate checks an email and password pair for login.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthenticated("Incorrect username or password")
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthenticated("Incorrect username or password")
	}
	return u, nil
}

// ResolvePrincipal implements auth.PrincipalResolver.
func (s *Service) ResolvePrincipal(ctx context.Context, email string) (*auth.Principal, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.Principal(), nil
}
