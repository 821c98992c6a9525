package auditlog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medtrust/medtrust/internal/platform/auth"
	"github.com/medtrust/medtrust/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/log_access", h.LogAccess)

	g.GET("/access_logs/admin", h.ListAll, auth.RequireRole(auth.RoleAdmin))
	g.GET("/all_doctor_access_logs", h.ListDoctorLogs, auth.RequireRole(auth.RoleAdmin))
	g.GET("/all_nurse_access_logs", h.ListNurseLogs, auth.RequireRole(auth.RoleAdmin))

	g.GET("/doctor_access_logs/:name", h.ListByDoctor, auth.RequireSelfOrRole("name", auth.RoleAdmin))
	g.GET("/nurse_access_logs/:name", h.ListByNurse, auth.RequireSelfOrRole("name", auth.RoleAdmin))
	g.GET("/patient_access_history/:name", h.ListByPatient,
		auth.RequireSelfOrRole("name", auth.RoleDoctor, auth.RoleNurse, auth.RoleAdmin))
}

type logRequest struct {
	PatientName   string `json:"patient_name"`
	Action        string `json:"action"`
	Justification string `json:"justification"`
	Status        string `json:"status"`
}

// LogAccess appends one audit entry on behalf of the authenticated caller.
// Actor identity always comes from the session, never from the body.
func (h *Handler) LogAccess(c echo.Context) error {
	var req logRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	status, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	entry := &Entry{
		ActorName:     auth.UserNameFromContext(ctx),
		ActorRole:     auth.RoleFromContext(ctx),
		PatientName:   req.PatientName,
		Action:        req.Action,
		Justification: req.Justification,
		Status:        status,
	}
	if err := h.svc.Record(ctx, entry); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"log":     entry,
	})
}

func (h *Handler) ListAll(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAll(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, logsResponse(items, total, pg))
}

func (h *Handler) ListDoctorLogs(c echo.Context) error {
	return h.listByRole(c, auth.RoleDoctor)
}

func (h *Handler) ListNurseLogs(c echo.Context) error {
	return h.listByRole(c, auth.RoleNurse)
}

func (h *Handler) listByRole(c echo.Context, role auth.Role) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByRole(c.Request().Context(), role, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, logsResponse(items, total, pg))
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	return h.listByActor(c, auth.RoleDoctor)
}

func (h *Handler) ListByNurse(c echo.Context) error {
	return h.listByActor(c, auth.RoleNurse)
}

func (h *Handler) listByActor(c echo.Context, role auth.Role) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByActor(c.Request().Context(), role, c.Param("name"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, logsResponse(items, total, pg))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), c.Param("name"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, logsResponse(items, total, pg))
}

func logsResponse(items []*Entry, total int, pg pagination.Params) map[string]interface{} {
	if items == nil {
		items = []*Entry{}
	}
	return map[string]interface{}{
		"success": true,
		"logs":    items,
		"total":   total,
		"limit":   pg.Limit,
		"offset":  pg.Offset,
	}
}
