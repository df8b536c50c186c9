// Package stats serves the admin dashboard counters.
package stats

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/internal/platform/db"
)

type Stats struct {
	AdminCount     int `json:"admin_count"`
	CaretakerCount int `json:"caretaker_count"`
	DoctorCount    int `json:"doctor_count"`
	PatientCount   int `json:"patient_count"`
}

// Counter returns the number of users per role. Roles without users may
// be absent.
type Counter interface {
	CountByRole(ctx context.Context) (map[account.Role]int, error)
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type counterPG struct{ pool *pgxpool.Pool }

func NewCounterPG(pool *pgxpool.Pool) Counter {
	return &counterPG{pool: pool}
}

func (r *counterPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *counterPG) CountByRole(ctx context.Context) (map[account.Role]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[account.Role]int, 4)
	for rows.Next() {
		var (
			role account.Role
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

type Handler struct {
	counter Counter
}

func NewHandler(counter Counter) *Handler {
	return &Handler{counter: counter}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/stats", h.Get, auth.RequireAdmin())
}

func (h *Handler) Get(c echo.Context) error {
	counts, err := h.counter.CountByRole(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, Stats{
		AdminCount:     counts[account.RoleAdmin],
		CaretakerCount: counts[account.RoleCaretaker],
		DoctorCount:    counts[account.RoleDoctor],
		PatientCount:   counts[account.RolePatient],
	})
}
