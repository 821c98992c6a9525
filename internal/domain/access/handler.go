package access

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medtrust/medtrust/internal/platform/auth"
	"github.com/medtrust/medtrust/internal/platform/locality"
)

type Handler struct {
	svc      *Service
	locality *locality.Classifier
}

func NewHandler(svc *Service, classifier *locality.Classifier) *Handler {
	return &Handler{svc: svc, locality: classifier}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	staff := auth.RequireRole(auth.RoleDoctor, auth.RoleNurse)
	g.POST("/normal_access", h.tier(TierNormal), staff)
	g.POST("/restricted_access", h.tier(TierRestricted), staff)
	g.POST("/emergency_access", h.tier(TierEmergency), staff)
	g.POST("/request_temp_access", h.tier(TierTemporary), auth.RequireRole(auth.RoleNurse))
}

type accessRequest struct {
	PatientName   string `json:"patient_name"`
	Justification string `json:"justification"`
}

type accessResponse struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	TrustScore  int         `json:"trust_score"`
	PatientData interface{} `json:"patient_data,omitempty"`
	ExpiresAt   interface{} `json:"expires_at,omitempty"`
}

func (h *Handler) tier(t Tier) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req accessRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		ctx := c.Request().Context()
		ip := c.RealIP()
		d, err := h.svc.Decide(ctx, &Request{
			Tier:          t,
			ActorName:     auth.UserNameFromContext(ctx),
			ActorRole:     auth.RoleFromContext(ctx),
			PatientName:   req.PatientName,
			Justification: req.Justification,
			Inside:        h.locality.Inside(ip),
			ClientIP:      ip,
		})

		var rej *RejectionError
		if errors.As(err, &rej) {
			return c.JSON(http.StatusBadRequest, accessResponse{
				Success: false,
				Message: rej.Reason,
			})
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		resp := accessResponse{
			Success:    d.Granted,
			Message:    d.Message,
			TrustScore: d.TrustScore,
		}
		if d.Patient != nil {
			resp.PatientData = d.Patient
		}
		if d.ExpiresAt != nil {
			resp.ExpiresAt = d.ExpiresAt
		}
		return c.JSON(http.StatusOK, resp)
	}
}
