package handlers

import (
	"github.com/fasthttp/router"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

type HealthService interface {
	Get() error
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(healthService HealthService) *HealthHandler {
	return &HealthHandler{
		svc: healthService,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	if h.svc != nil {
		if err := h.svc.Get(); err != nil {
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
			return
		}
	}
	writeSuccess(ctx, xhttp.StatusOK, map[string]string{"status": "ok"})
}
