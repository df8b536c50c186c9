package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/domain/audit"
	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/db"
	"github.com/healthtrack/healthtrack/internal/platform/middleware"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

// newSessionServer serves routes inside db.Session against a table whose
// unique key is only checked at commit time.
func newSessionServer(t *testing.T, pool *pgxpool.Pool) *echo.Echo {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `CREATE TABLE session_items (
		k TEXT NOT NULL,
		CONSTRAINT session_items_k_key UNIQUE (k) DEFERRABLE INITIALLY DEFERRED
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop())
	e.Use(middleware.Audit(zerolog.Nop(), audit.NewRecorder(audit.NewStorePG(pool))))
	e.Use(db.Session(pool, zerolog.Nop(), nil))
	return e
}

func insertItem(c echo.Context, k string) error {
	ctx := c.Request().Context()
	_, err := db.TxFromContext(ctx).Exec(ctx, `INSERT INTO session_items (k) VALUES ($1)`, k)
	return err
}

func countItems(t *testing.T, pool *pgxpool.Pool, k string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM session_items WHERE k = $1`, k).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func serve(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestSession_CommitsOnSuccess(t *testing.T) {
	pool := newSchemaPool(t)
	e := newSessionServer(t, pool)
	e.POST("/items", func(c echo.Context) error {
		if err := insertItem(c, "a"); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, map[string]string{"k": "a"})
	})

	rec := serve(e, "/items")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"k":"a"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if n := countItems(t, pool, "a"); n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestSession_RollsBackOnHandlerError(t *testing.T) {
	pool := newSchemaPool(t)
	e := newSessionServer(t, pool)
	e.POST("/items", func(c echo.Context) error {
		if err := insertItem(c, "b"); err != nil {
			return err
		}
		return apperr.HTTP(apperr.Validation("rejected"))
	})

	rec := serve(e, "/items")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if n := countItems(t, pool, "b"); n != 0 {
		t.Errorf("expected no rows after rollback, got %d", n)
	}
}

func TestSession_FailedCommitAnswers500(t *testing.T) {
	pool := newSchemaPool(t)
	e := newSessionServer(t, pool)
	e.POST("/items", func(c echo.Context) error {
		for i := 0; i < 2; i++ {
			if err := insertItem(c, "c"); err != nil {
				return err
			}
		}
		return c.JSON(http.StatusCreated, map[string]bool{"ok": true})
	})

	rec := serve(e, "/items")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("success body leaked: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Errorf("expected error detail, got %s", rec.Body.String())
	}
	if n := countItems(t, pool, "c"); n != 0 {
		t.Errorf("expected no rows, got %d", n)
	}

	page, err := audit.NewService(audit.NewStorePG(pool)).List(context.Background(), pagination.Params{Page: 1, Size: 10})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if page.Total != 1 || page.Items[0].Status != http.StatusInternalServerError {
		t.Fatalf("expected one audit row with status 500, got %+v", page.Items)
	}
}

func TestSession_EarlyCommit(t *testing.T) {
	pool := newSchemaPool(t)
	e := newSessionServer(t, pool)
	e.POST("/items", func(c echo.Context) error {
		if err := insertItem(c, "d"); err != nil {
			return err
		}
		if err := db.Commit(c.Request().Context()); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, "/items")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if n := countItems(t, pool, "d"); n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}
