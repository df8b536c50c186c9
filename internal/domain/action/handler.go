package action

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/current/actions", auth.RequireNonAdmin(), auth.RequirePatient())
	g.POST("", h.Send)
}

func (h *Handler) Send(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid request body")
	}
	a, err := h.svc.Send(c.Request().Context(), p.UserID, &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}
