package trust

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/trust_score/:principal", h.GetScore,
		auth.RequireSelfOrRole("principal", auth.RoleAdmin))
}

func (h *Handler) GetScore(c echo.Context) error {
	score, err := h.svc.GetScore(c.Request().Context(), c.Param("principal"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":     true,
		"principal":   c.Param("principal"),
		"trust_score": score,
	})
}
