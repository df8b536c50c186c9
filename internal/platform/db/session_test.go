package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not a tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil tx for wrong value type")
	}
}

func TestConnFromContext_Empty(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestWithTx_NoConn(t *testing.T) {
	ctx := context.Background()
	got, tx, err := WithTx(ctx)
	if err == nil {
		t.Fatal("expected error without a connection")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("unexpected error: %v", err)
	}
	if tx != nil {
		t.Error("expected nil tx")
	}
	if got != ctx {
		t.Error("expected the original context back")
	}
}

func TestCommit_NoTx(t *testing.T) {
	if err := Commit(context.Background()); err != nil {
		t.Fatalf("expected no-op outside a session, got %v", err)
	}
}

func TestBufferedWriter_HoldsUntilFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &bufferedWriter{ResponseWriter: rec}
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(`{"id":1}`))
	if rec.Body.Len() != 0 {
		t.Fatal("expected nothing written before flush")
	}
	if err := w.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if rec.Body.String() != `{"id":1}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestBufferedWriter_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &bufferedWriter{ResponseWriter: rec}
	w.Write([]byte("ok"))
	w.flush()
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSession_Skipped(t *testing.T) {
	e := echo.New()
	mw := Session(nil, zerolog.Nop(), func(echo.Context) bool { return true })
	e.GET("/health", func(c echo.Context) error {
		if TxFromContext(c.Request().Context()) != nil {
			t.Error("expected no tx on a skipped route")
		}
		return c.String(http.StatusOK, "ok")
	}, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}
