package account

import (
	"strings"
	"time"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
)

type Role string

const (
	RoleAdmin     Role = auth.RoleAdmin
	RoleCaretaker Role = auth.RoleCaretaker
	RoleDoctor    Role = auth.RoleDoctor
	RolePatient   Role = auth.RolePatient
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCaretaker, RoleDoctor, RolePatient:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale         Gender = "male"
	GenderFemale       Gender = "female"
	GenderRatherNotSay Gender = "rather_not_say"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderRatherNotSay:
		return true
	}
	return false
}

type BloodGroup string

const (
	BloodGroupAPositive  BloodGroup = "A+"
	BloodGroupANegative  BloodGroup = "A-"
	BloodGroupABPositive BloodGroup = "AB+"
	BloodGroupABNegative BloodGroup = "AB-"
	BloodGroupBPositive  BloodGroup = "B+"
	BloodGroupBNegative  BloodGroup = "B-"
	BloodGroupOPositive  BloodGroup = "O+"
	BloodGroupONegative  BloodGroup = "O-"
	BloodGroupUnknown    BloodGroup = "Unknown"
)

func (b BloodGroup) Valid() bool {
	switch b {
	case BloodGroupAPositive, BloodGroupANegative,
		BloodGroupABPositive, BloodGroupABNegative,
		BloodGroupBPositive, BloodGroupBNegative,
		BloodGroupOPositive, BloodGroupONegative,
		BloodGroupUnknown:
		return true
	}
	return false
}

// AdditionalDetails maps to user_additional_details. Every user has exactly
// one row, created together with the user.
type AdditionalDetails struct {
	Phone      *string    `db:"phone" json:"phone"`
	Age        *int       `db:"age" json:"age"`
	BloodGroup BloodGroup `db:"blood_group" json:"blood_group"`
}

// User maps to the users table.
type User struct {
	ID                int64             `db:"id" json:"id"`
	Name              string            `db:"name" json:"name"`
	Email             string            `db:"email" json:"email"`
	PasswordHash      string            `db:"password" json:"-"`
	Gender            Gender            `db:"gender" json:"gender"`
	Role              Role              `db:"role" json:"user_role"`
	AdditionalDetails AdditionalDetails `json:"additional_details"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time        `db:"updated_at" json:"updated_at"`
}

// Principal is the auth view of the user.
func (u *User) Principal() *auth.Principal {
	return &auth.Principal{UserID: u.ID, Email: u.Email, Role: string(u.Role)}
}

// CreateUserRequest is the body of POST /users. The role may be sent as
// user_role or role.
type CreateUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Gender    Gender `json:"gender"`
	Role      Role   `json:"user_role"`
	RoleAlias Role   `json:"role"`
}

func (r *CreateUserRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Role == "" {
		r.Role = r.RoleAlias
	}
}

func (r *CreateUserRequest) Validate() error {
	r.normalize()
	if r.Name == "" {
		return apperr.Validation("name is required")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if r.Gender == "" {
		return apperr.Validation("gender is required")
	}
	if !r.Gender.Valid() {
		return apperr.Validation("invalid gender: %s", r.Gender)
	}
	if !r.Role.Valid() {
		return apperr.Validation("invalid user_role: %s", r.Role)
	}
	return nil
}

// DetailsInput is the additional_details part of an update. Empty strings
// and the literal "string" are read as null.
type DetailsInput struct {
	Phone      *string `json:"phone"`
	Age        *int    `json:"age"`
	BloodGroup *string `json:"blood_group"`
}

func (d *DetailsInput) details() (AdditionalDetails, error) {
	out := AdditionalDetails{
		Phone:      nullable(d.Phone),
		Age:        d.Age,
		BloodGroup: BloodGroupUnknown,
	}
	if bg := nullable(d.BloodGroup); bg != nil {
		out.BloodGroup = BloodGroup(*bg)
	}
	if !out.BloodGroup.Valid() {
		return out, apperr.Validation("invalid blood_group: %s", out.BloodGroup)
	}
	if out.Age != nil && (*out.Age < 1 || *out.Age > 149) {
		return out, apperr.Validation("age must be a positive and less than 150")
	}
	return out, nil
}

func nullable(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || v == "string" {
		return nil
	}
	return &v
}

// UpdateUserRequest is the body of PUT /users/:id and PUT /common/me. A
// missing additional_details object leaves the stored details unchanged.
type UpdateUserRequest struct {
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Gender            Gender        `json:"gender"`
	AdditionalDetails *DetailsInput `json:"additional_details"`
}

func (r *UpdateUserRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Name == "" {
		return apperr.Validation("name is required")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if !r.Gender.Valid() {
		return apperr.Validation("invalid gender: %s", r.Gender)
	}
	if r.AdditionalDetails != nil {
		if _, err := r.AdditionalDetails.details(); err != nil {
			return err
		}
	}
	return nil
}

type PasswordUpdateRequest struct {
	NewPassword string `json:"new_password"`
}

func (r *PasswordUpdateRequest) Validate() error {
	return validatePassword(r.NewPassword)
}

func validateEmail(email string) error {
	switch {
	case email == "":
		return apperr.Validation("email is required")
	case strings.Contains(email, " "):
		return apperr.Validation("email must not contain a space")
	case strings.Contains(email, ","):
		return apperr.Validation("email must not contain any commas")
	case !strings.Contains(email, "@"):
		return apperr.Validation("email must be a valid email address")
	}
	return nil
}

func validatePassword(pw string) error {
	if pw == "" {
		return apperr.Validation("password is required")
	}
	if len(pw) > auth.MaxPasswordBytes {
		return apperr.Validation("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return nil
}
