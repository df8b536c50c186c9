package account

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

type Handler struct {
	svc    *Service
	issuer *auth.TokenIssuer
}

func NewHandler(svc *Service, issuer *auth.TokenIssuer) *Handler {
	return &Handler{svc: svc, issuer: issuer}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/token", h.Login)

	users := e.Group("/users", auth.RequireAdmin())
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.GET("/:id", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
	users.PATCH("/password/:id", h.UpdateUserPassword)
	users.DELETE("/:id", h.DeleteUser)

	admins := e.Group("/admins", auth.RequireAdmin())
	admins.GET("", h.ListAdmins)
	admins.GET("/:id", h.GetAdmin)

	me := e.Group("/common/me")
	me.GET("", h.GetMe)
	me.PUT("", h.UpdateMe)
	me.PATCH("/password", h.UpdateMyPassword)
}

// Detail is the body of responses that carry only a message.
type Detail struct {
	Detail string `json:"detail"`
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}

// Login implements the OAuth2 password grant: the username is the email.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username and password are required")
	}
	u, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}
		return apperr.HTTP(err)
	}
	token, _, err := h.issuer.Issue(u.Email)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", User: u})
}

func (h *Handler) ListUsers(c echo.Context) error {
	return h.list(c, "")
}

func (h *Handler) ListAdmins(c echo.Context) error {
	return h.list(c, RoleAdmin)
}

func (h *Handler) list(c echo.Context, role Role) error {
	page, err := h.svc.ListUsers(c.Request().Context(), role, pagination.FromContext(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetAdmin(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.GetAdmin(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	u, err := h.svc.CreateUser(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	return h.update(c, id)
}

func (h *Handler) UpdateUserPassword(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	return h.updatePassword(c, id)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, Detail{Detail: "Deleted successfully"})
}

func (h *Handler) GetMe(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	}
	u, err := h.svc.GetUser(c.Request().Context(), p.UserID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	}
	return h.update(c, p.UserID)
}

func (h *Handler) UpdateMyPassword(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	}
	return h.updatePassword(c, p.UserID)
}

func (h *Handler) update(c echo.Context, id int64) error {
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) updatePassword(c echo.Context, id int64) error {
	var req PasswordUpdateRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	u, err := h.svc.UpdatePassword(c.Request().Context(), id, &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

// ParseID reads a positive integer path parameter.
func ParseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid "+name)
	}
	return id, nil
}

func invalidBody() error {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid request body")
}
