package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are reachable without a bearer token.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/token":     true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the route path needs no bearer token.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
