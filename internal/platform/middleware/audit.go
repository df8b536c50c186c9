package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
)

// AuditEntry records one state-changing request: who did what to which
// resource and how it ended.
type AuditEntry struct {
	UserID    int64
	Role      string
	Action    string // create, update, delete, login
	Resource  string
	TargetID  string
	Method    string
	Path      string
	Status    int
	RequestID string
	IPAddress string
	Timestamp time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// Audit logs every mutating request after it completes. Reads are not
// audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			action := methodToAction(c.Request().Method)
			if action == "" {
				return next(c)
			}

			err := next(c)

			req := c.Request()
			entry := AuditEntry{
				Action:    action,
				Resource:  resourceOf(req.URL.Path),
				TargetID:  targetOf(c),
				Method:    req.Method,
				Path:      req.URL.Path,
				Status:    c.Response().Status,
				IPAddress: c.RealIP(),
				Timestamp: time.Now().UTC(),
			}
			if err != nil {
				entry.Status = apperr.HTTP(err).Code
			}
			if entry.Resource == "token" {
				entry.Action = "login"
			}
			if p := auth.PrincipalFromContext(req.Context()); p != nil {
				entry.UserID = p.UserID
				entry.Role = p.Role
			}
			entry.RequestID, _ = c.Get(requestIDContextKey).(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Int64("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("action", entry.Action).
				Str("resource", entry.Resource).
				Str("target_id", entry.TargetID).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.Status).
				Msg("audit")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}

// resourceOf returns the first path segment, e.g. "/users/3" -> "users".
func resourceOf(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

// targetOf picks the entity the request acts on: the :id route param,
// else the patient_id query parameter used by association endpoints.
func targetOf(c echo.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.QueryParam("patient_id")
}
