package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/internal/services"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

type TargetingLocationService interface {
	Create(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error)
	Get(ctx context.Context, id int64) (*model.TargetingLocation, error)
	List(ctx context.Context, f model.TargetingLocationFilter) ([]*model.TargetingLocation, int64, error)
	Update(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error)
	Delete(ctx context.Context, id int64) error
	EstimateReach(radiusM int) (*services.ReachEstimate, error)
	Customers(ctx context.Context, id int64) ([]*model.CustomerWithDistance, error)
	CustomerCount(ctx context.Context, id int64) (int64, error)
}

type TargetingLocationHandler struct {
	svc TargetingLocationService
}

func RegisterTargetingLocationRoutes(e *router.Group, h *TargetingLocationHandler) {
	e.GET("/targeting-locations", h.ListLocations)
	e.GET("/targeting-locations/{id}", h.GetLocation)
	e.POST("/targeting-locations", h.CreateLocation)
	e.PUT("/targeting-locations/{id}", h.UpdateLocation)
	e.DELETE("/targeting-locations/{id}", h.DeleteLocation)
	e.GET("/targeting-locations/{id}/customers", h.GetLocationCustomers)
	e.GET("/targeting-locations/{id}/customer-count", h.GetLocationCustomerCount)
	e.GET("/targeting-locations/estimate-reach", h.EstimateReach)
}

func NewTargetingLocationHandler(locationService TargetingLocationService) *TargetingLocationHandler {
	return &TargetingLocationHandler{
		svc: locationService,
	}
}

type targetingLocationRequest struct {
	Name      string  `json:"name"`
	Memo      string  `json:"memo"`
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	RadiusM   int     `json:"radiusM"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TargetingLocationHandler) ListLocations(ctx *xhttp.RequestCtx) {
	var f model.TargetingLocationFilter

	if v := query(ctx, "name"); v != "" {
		f.Name = &v
	}
	f.Limit, f.Offset, f.Desc = parsePagination(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, listData{Items: items, Total: total})
}

func (h *TargetingLocationHandler) GetLocation(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid location id")
		return
	}

	l, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, l)
}

func (h *TargetingLocationHandler) CreateLocation(ctx *xhttp.RequestCtx) {
	var req targetingLocationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	l, err := h.svc.Create(ctx, &model.TargetingLocation{
		Name:      req.Name,
		Memo:      req.Memo,
		CenterLat: req.CenterLat,
		CenterLng: req.CenterLng,
		RadiusM:   req.RadiusM,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusCreated, l)
}

func (h *TargetingLocationHandler) UpdateLocation(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid location id")
		return
	}

	var req targetingLocationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	l, err := h.svc.Update(ctx, &model.TargetingLocation{
		ID:        id,
		Name:      req.Name,
		Memo:      req.Memo,
		CenterLat: req.CenterLat,
		CenterLng: req.CenterLng,
		RadiusM:   req.RadiusM,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, l)
}

func (h *TargetingLocationHandler) DeleteLocation(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid location id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, nil)
}

func (h *TargetingLocationHandler) GetLocationCustomers(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid location id")
		return
	}

	customers, err := h.svc.Customers(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, listData{Items: customers, Total: int64(len(customers))})
}

func (h *TargetingLocationHandler) GetLocationCustomerCount(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid location id")
		return
	}

	count, err := h.svc.CustomerCount(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, map[string]int64{"count": count})
}

func (h *TargetingLocationHandler) EstimateReach(ctx *xhttp.RequestCtx) {
	radius, err := strconv.Atoi(query(ctx, "radiusM"))
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid radiusM")
		return
	}

	estimate, err := h.svc.EstimateReach(radius)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, estimate)
}
