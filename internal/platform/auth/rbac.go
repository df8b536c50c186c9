package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func require(allowed func(role string) bool, detail string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, credentialsDetail)
			}
			if !allowed(p.Role) {
				return echo.NewHTTPError(http.StatusForbidden, detail)
			}
			return next(c)
		}
	}
}

func RequireAdmin() echo.MiddlewareFunc {
	return require(func(role string) bool { return role == RoleAdmin },
		"You do not have the necessary permission to access this route")
}

func RequireNonAdmin() echo.MiddlewareFunc {
	return require(func(role string) bool { return role != RoleAdmin },
		"Admins can not access this route")
}

func RequirePatient() echo.MiddlewareFunc {
	return require(func(role string) bool { return role == RolePatient },
		"Only patients can access this route")
}

// RequireCareProvider passes caretakers and doctors.
func RequireCareProvider() echo.MiddlewareFunc {
	return require(IsCareProvider, "Patients can not access this route")
}

func IsCareProvider(role string) bool {
	return role == RoleCaretaker || role == RoleDoctor
}
