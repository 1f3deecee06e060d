package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/treatment", h.ListTreatmentNames)
}

func (h *Handler) ListTreatmentNames(c echo.Context) error {
	items, err := h.svc.ListTreatmentNames(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
