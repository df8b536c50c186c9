package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
)

type contextKey string

const principalKey contextKey = "principal"

const (
	RoleAdmin     = "admin"
	RoleCaretaker = "caretaker"
	RoleDoctor    = "doctor"
	RolePatient   = "patient"
)

const credentialsDetail = "Could not validate credentials"

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Email  string
	Role   string
}

// PrincipalResolver loads the account named by a token subject. A missing
// account must be reported as apperr.ErrNotFound.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, email string) (*Principal, error)
}

// Authenticate verifies the bearer token and stores the resolved Principal
// in the request context.
func Authenticate(issuer *TokenIssuer, resolver PrincipalResolver, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c)
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return unauthorized(c)
			}

			claims, err := issuer.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return unauthorized(c)
			}

			ctx := c.Request().Context()
			p, err := resolver.ResolvePrincipal(ctx, claims.Subject)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return unauthorized(c)
				}
				return apperr.HTTP(err)
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, credentialsDetail)
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
