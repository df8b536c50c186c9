package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newAuditContext(method, target string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAudit_RecordsUpdate(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext(http.MethodPut, "/users/12", &auth.Principal{UserID: 1, Role: auth.RoleAdmin})
	c.SetParamNames("id")
	c.SetParamValues("12")
	c.Set("request_id", "rid-7")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", rec.count())
	}
	got := rec.last()
	if got.Action != "update" || got.Resource != "users" || got.TargetID != "12" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.UserID != 1 || got.Role != auth.RoleAdmin {
		t.Errorf("expected principal on entry, got %+v", got)
	}
	if got.RequestID != "rid-7" || got.Status != http.StatusOK {
		t.Errorf("unexpected request id/status: %+v", got)
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext(http.MethodGet, "/users", nil)
	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected no entry for GET, got %d", rec.count())
	}
}

func TestAudit_AssociationTargetFromQuery(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext(http.MethodPost, "/associations/caretaker?patient_id=4&caretaker_id=5", &auth.Principal{UserID: 1, Role: auth.RoleAdmin})
	_ = Audit(zerolog.Nop(), rec)(okHandler)(c)

	got := rec.last()
	if got.Action != "create" || got.Resource != "associations" || got.TargetID != "4" {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestAudit_LoginAction(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext(http.MethodPost, "/token", nil)
	_ = Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		return apperr.HTTP(apperr.Unauthenticated("Incorrect username or password"))
	})(c)

	got := rec.last()
	if got.Action != "login" {
		t.Errorf("expected login action, got %q", got.Action)
	}
	if got.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401 from error, got %d", got.Status)
	}
}

func TestAudit_DeleteAction(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newAuditContext(http.MethodDelete, "/users/3", &auth.Principal{UserID: 1, Role: auth.RoleAdmin})
	_ = Audit(zerolog.Nop(), rec)(okHandler)(c)
	if rec.last().Action != "delete" {
		t.Errorf("expected delete, got %q", rec.last().Action)
	}
}

func TestAudit_RecorderError_DoesNotBreakRequest(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockRecorder{err: errors.New("disk full")}
	c, resp := newAuditContext(http.MethodPost, "/users", &auth.Principal{UserID: 1, Role: auth.RoleAdmin})

	if err := Audit(zerolog.New(&buf), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(buf.String(), "failed to record audit entry") {
		t.Errorf("expected recorder failure to be logged, got %s", buf.String())
	}
}

func TestAudit_LogLine(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newAuditContext(http.MethodPatch, "/common/me/password", &auth.Principal{UserID: 8, Role: auth.RolePatient})
	_ = Audit(zerolog.New(&buf))(okHandler)(c)

	out := buf.String()
	for _, want := range []string{`"type":"audit"`, `"user_id":8`, `"resource":"common"`, `"action":"update"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/users/5":             "users",
		"/associations/doctor": "associations",
		"/current/history":     "current",
		"/":                    "unknown",
		"":                     "unknown",
	}
	for in, want := range tests {
		if got := resourceOf(in); got != want {
			t.Errorf("resourceOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "",
		http.MethodHead:   "",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for in, want := range tests {
		if got := methodToAction(in); got != want {
			t.Errorf("methodToAction(%q) = %q, want %q", in, got, want)
		}
	}
}
