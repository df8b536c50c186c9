package account

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// UserColumns and UserFrom select a user joined with its details. Other
// stores reuse them with ScanUser.
const (
	UserColumns = `u.id, u.name, u.email, u.password, u.gender, u.role,
	u.created_at, u.updated_at,
	d.phone, d.age, COALESCE(d.blood_group, 'Unknown')`
	UserFrom = `users u LEFT JOIN user_additional_details d ON d.user_id = u.id`
)

// ScanUser scans UserColumns. lead receives any columns selected before
// them.
func ScanUser(row pgx.Row, lead ...any) (*User, error) {
	var u User
	dest := append(lead,
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Gender, &u.Role,
		&u.CreatedAt, &u.UpdatedAt,
		&u.AdditionalDetails.Phone, &u.AdditionalDetails.Age, &u.AdditionalDetails.BloodGroup)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &u, nil
}

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *userRepoPG) getOne(ctx context.Context, where string, arg any) (*User, error) {
	u, err := ScanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+UserColumns+` FROM `+UserFrom+` WHERE `+where, arg))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return u, nil
}

// mapWriteErr turns unique violations into conflicts naming the field.
func mapWriteErr(err error) error {
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case "users_email_key":
			return apperr.Conflict("User with same email already exists")
		case "user_additional_details_phone_key":
			return apperr.Conflict("This phone number is already in use")
		}
		return apperr.Conflict("User already exists")
	}
	return err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.AdditionalDetails = AdditionalDetails{BloodGroup: BloodGroupUnknown}
	err := r.conn(ctx).QueryRow(ctx, `
		WITH u AS (
			INSERT INTO users (name, email, password, gender, role)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		), d AS (
			INSERT INTO user_additional_details (user_id, blood_group)
			SELECT id, $6::text FROM u
		)
		SELECT id, created_at FROM u`,
		u.Name, u.Email, u.PasswordHash, string(u.Gender), string(u.Role),
		string(u.AdditionalDetails.BloodGroup)).Scan(&u.ID, &u.CreatedAt)
	return mapWriteErr(err)
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, `u.id = $1`, id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `u.email = $1`, email)
}

func (r *userRepoPG) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getOne(ctx, `d.phone = $1`, phone)
}

// Update writes the user row and upserts its details in one statement.
func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	d := u.AdditionalDetails
	err := r.conn(ctx).QueryRow(ctx, `
		WITH u AS (
			UPDATE users SET name = $2, email = $3, gender = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING id, updated_at
		), d AS (
			INSERT INTO user_additional_details (user_id, phone, age, blood_group)
			SELECT id, $5::text, $6::int, $7::text FROM u
			ON CONFLICT (user_id) DO UPDATE
			SET phone = EXCLUDED.phone, age = EXCLUDED.age, blood_group = EXCLUDED.blood_group
		)
		SELECT updated_at FROM u`,
		u.ID, u.Name, u.Email, string(u.Gender),
		d.Phone, d.Age, string(d.BloodGroup)).Scan(&u.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("User not found")
	}
	return mapWriteErr(err)
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

// Delete removes the user. Details, associations, history and actions
// cascade.
func (r *userRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	const filter = ` WHERE ($1 = '' OR u.role = $1)`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users u`+filter, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+UserColumns+` FROM `+UserFrom+filter+
		` ORDER BY u.id LIMIT $2 OFFSET $3`, string(role), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := ScanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
