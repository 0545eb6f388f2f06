package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/nearwave/geocampaign/internal/model"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

type DashboardService interface {
	Summary(ctx context.Context) (*model.DashboardSummary, error)
	Distribution(ctx context.Context) ([]*model.CustomerDistribution, error)
}

type RecentCampaignLister interface {
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
}

type HourlyDeliveryReader interface {
	Hourly(ctx context.Context, campaignID *int64, from, to time.Time) ([]*model.HourlyDeliveries, error)
}

type DashboardHandler struct {
	svc        DashboardService
	campaigns  RecentCampaignLister
	deliveries HourlyDeliveryReader
}

func RegisterDashboardRoutes(e *router.Group, h *DashboardHandler) {
	e.GET("/dashboard/summary", h.GetSummary)
	e.GET("/dashboard/customer-distribution", h.GetCustomerDistribution)
	e.GET("/dashboard/recent-campaigns", h.GetRecentCampaigns)
	e.GET("/dashboard/hourly-deliveries", h.GetHourlyDeliveries)
}

func NewDashboardHandler(dashboardService DashboardService, campaignService RecentCampaignLister, deliveryService HourlyDeliveryReader) *DashboardHandler {
	return &DashboardHandler{
		svc:        dashboardService,
		campaigns:  campaignService,
		deliveries: deliveryService,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *DashboardHandler) GetSummary(ctx *xhttp.RequestCtx) {
	summary, err := h.svc.Summary(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, summary)
}

func (h *DashboardHandler) GetCustomerDistribution(ctx *xhttp.RequestCtx) {
	distribution, err := h.svc.Distribution(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, distribution)
}

func (h *DashboardHandler) GetRecentCampaigns(ctx *xhttp.RequestCtx) {
	items, _, err := h.campaigns.List(ctx, model.CampaignFilter{Limit: 5, Desc: true})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, items)
}

// GetHourlyDeliveries serves the dashboard chart: all campaigns, trailing
// 24 hours.
func (h *DashboardHandler) GetHourlyDeliveries(ctx *xhttp.RequestCtx) {
	buckets, err := h.deliveries.Hourly(ctx, nil, time.Time{}, time.Time{})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, buckets)
}
