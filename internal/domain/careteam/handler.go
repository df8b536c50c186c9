package careteam

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/platform/apperr"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	admin := auth.RequireAdmin()

	assoc := e.Group("/associations", admin)
	for _, kind := range []Kind{KindCaretaker, KindDoctor} {
		assoc.POST("/"+string(kind), h.associate(kind))
		assoc.POST("/disassociate/"+string(kind), h.disassociate(kind))
		assoc.DELETE("/"+string(kind), h.disassociate(kind))
	}

	caretakers := e.Group("/caretakers", admin)
	caretakers.GET("", h.listProviders(KindCaretaker))
	caretakers.GET("/:id", h.getProvider(KindCaretaker))

	doctors := e.Group("/doctors", admin)
	doctors.GET("", h.listProviders(KindDoctor))
	doctors.GET("/:id", h.getProvider(KindDoctor))

	patients := e.Group("/patients", admin)
	patients.GET("", h.ListPatients)
	patients.GET("/:id", h.GetPatient)

	current := e.Group("/current/patients", auth.RequireNonAdmin(), auth.RequireCareProvider())
	current.GET("", h.ListMyPatients)
	current.GET("/:id", h.GetMyPatient)
	current.GET("/history/:id/:start_date/:end_date", h.GetMyPatientHistory)
}

func queryID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.QueryParam(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid "+name)
	}
	return id, nil
}

func pairFromQuery(c echo.Context, kind Kind) (patientID, providerID int64, err error) {
	if patientID, err = queryID(c, "patient_id"); err != nil {
		return 0, 0, err
	}
	if providerID, err = queryID(c, kind.column()); err != nil {
		return 0, 0, err
	}
	return patientID, providerID, nil
}

func (h *Handler) associate(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		patientID, providerID, err := pairFromQuery(c, kind)
		if err != nil {
			return err
		}
		if err := h.svc.Associate(c.Request().Context(), kind, patientID, providerID); err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, account.Detail{Detail: "Associated successfully"})
	}
}

func (h *Handler) disassociate(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		patientID, providerID, err := pairFromQuery(c, kind)
		if err != nil {
			return err
		}
		if err := h.svc.Disassociate(c.Request().Context(), kind, patientID, providerID); err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, account.Detail{Detail: "Disassociated successfully"})
	}
}

func (h *Handler) listProviders(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		page, err := h.svc.ListProviders(c.Request().Context(), kind, pagination.FromContext(c))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, page)
	}
}

func (h *Handler) getProvider(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := account.ParseID(c, "id")
		if err != nil {
			return err
		}
		provider, err := h.svc.GetProvider(c.Request().Context(), kind, id)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, provider)
	}
}

func (h *Handler) ListPatients(c echo.Context) error {
	page, err := h.svc.ListPatients(c.Request().Context(), pagination.FromContext(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := account.ParseID(c, "id")
	if err != nil {
		return err
	}
	patient, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, patient)
}

func principal(c echo.Context) (*auth.Principal, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	}
	return p, nil
}

func (h *Handler) ListMyPatients(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListPatientsFor(c.Request().Context(), p, pagination.FromContext(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) GetMyPatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := account.ParseID(c, "id")
	if err != nil {
		return err
	}
	patient, err := h.svc.GetPatientFor(c.Request().Context(), p, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, patient)
}

func (h *Handler) GetMyPatientHistory(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := account.ParseID(c, "id")
	if err != nil {
		return err
	}
	page, err := h.svc.HistoryFor(c.Request().Context(), p, id,
		c.Param("start_date"), c.Param("end_date"), pagination.FromContext(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, page)
}
