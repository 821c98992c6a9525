package identity

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medtrust/medtrust/internal/domain/patient"
	"github.com/medtrust/medtrust/internal/platform/auth"
	"github.com/medtrust/medtrust/pkg/pagination"
)

// PatientEnroller creates the clinical record that backs a patient-role
// principal.
type PatientEnroller interface {
	Create(ctx context.Context, p *patient.Patient) (*patient.Patient, error)
}

type Handler struct {
	svc    *Service
	enroll PatientEnroller
}

func NewHandler(svc *Service, enroll PatientEnroller) *Handler {
	return &Handler{svc: svc, enroll: enroll}
}

// RegisterPublicRoutes mounts the unauthenticated login endpoints.
func (h *Handler) RegisterPublicRoutes(e *echo.Echo) {
	e.POST("/login", h.Login)
	e.POST("/verify-otp", h.VerifyOTP)
	e.POST("/resend-otp", h.ResendOTP)
}

// RegisterRoutes mounts the admin-only directory endpoints.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/register_user", h.Register, auth.RequireRole(auth.RoleAdmin))
	g.POST("/assign_role", h.AssignRole, auth.RequireRole(auth.RoleAdmin))
	g.GET("/get_all_users", h.List, auth.RequireRole(auth.RoleAdmin))
}

type loginRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login starts a session. Email plus password takes the password path;
// a bare name starts an OTP challenge.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	var (
		res *LoginResult
		err error
	)
	switch {
	case req.Email != "" && req.Password != "":
		res, err = h.svc.LoginWithPassword(ctx, req.Email, req.Password)
	case req.Name != "":
		res, err = h.svc.StartOTPLogin(ctx, req.Name)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "name or email and password required")
	}

	if errors.Is(err, ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

type otpRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and code are required")
	}

	res, err := h.svc.VerifyOTP(c.Request().Context(), req.Name, req.Code)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Failed verification is a normal outcome, not an HTTP error.
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ResendOTP(c echo.Context) error {
	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	res, err := h.svc.ResendOTP(c.Request().Context(), req.Name)
	if errors.Is(err, ErrChallengeActive) {
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
}

// Register enrolls a principal. Registering a patient also creates the
// backing clinical record.
func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	p, err := h.svc.Register(ctx, req.Name, req.Email, role, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp := map[string]interface{}{
		"success": true,
		"user":    p,
	}
	if role == auth.RolePatient && h.enroll != nil {
		rec, err := h.enroll.Create(ctx, &patient.Patient{
			Name:   req.Name,
			Email:  req.Email,
			Age:    req.Age,
			Gender: req.Gender,
		})
		if err != nil {
			resp["patient_record_error"] = err.Error()
		} else {
			resp["patient"] = rec
		}
	}
	return c.JSON(http.StatusCreated, resp)
}

type assignRoleRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *Handler) AssignRole(c echo.Context) error {
	var req assignRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AssignRole(c.Request().Context(), req.Name, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "principal not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Principal{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   items,
		"total":   total,
		"limit":   pg.Limit,
		"offset":  pg.Offset,
	})
}
