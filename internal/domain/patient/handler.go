package patient

import (
	"errors"
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
	g.GET("/all_patients", h.List, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.GET("/get_patient/:name", h.Get,
		auth.RequireSelfOrRole("name", auth.RoleDoctor, auth.RoleNurse, auth.RoleAdmin))
	g.POST("/add_patient", h.Create, auth.RequireRole(auth.RoleDoctor))
	g.POST("/update_patient", h.Update, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
}

type patientRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Age            int    `json:"age"`
	Gender         string `json:"gender"`
	Diagnosis      string `json:"diagnosis"`
	Treatment      string `json:"treatment"`
	Notes          string `json:"notes"`
	AssignedDoctor string `json:"assigned_doctor"`
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"patients": items,
		"total":    total,
		"limit":    pg.Limit,
		"offset":   pg.Offset,
	})
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.GetByName(c.Request().Context(), c.Param("name"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"patient": p,
	})
}

func (h *Handler) Create(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), &Patient{
		Name:           req.Name,
		Email:          req.Email,
		Age:            req.Age,
		Gender:         req.Gender,
		Diagnosis:      req.Diagnosis,
		Treatment:      req.Treatment,
		Notes:          req.Notes,
		AssignedDoctor: req.AssignedDoctor,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"patient": p,
	})
}

func (h *Handler) Update(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), &Patient{
		Name:           req.Name,
		Email:          req.Email,
		Age:            req.Age,
		Gender:         req.Gender,
		Diagnosis:      req.Diagnosis,
		Treatment:      req.Treatment,
		Notes:          req.Notes,
		AssignedDoctor: req.AssignedDoctor,
	})
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"patient": p,
	})
}
